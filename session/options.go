package session

import (
	"fmt"
	"time"

	"github.com/lithammer/shortuuid"

	"github.com/solvik/mqttc/codec"
	"github.com/solvik/mqttc/store"
	"github.com/solvik/mqttc/transport"
)

// ClientOptions configures a Connect call. Build one with DefaultOptions
// and a series of With* functions, the same pattern the rest of this
// module's option sets follow.
type ClientOptions struct {
	Protocol     codec.Protocol
	KeepAlive    time.Duration
	ClientID     string
	CleanSession bool
	LastWill     *codec.LastWill
	UserName     string
	HasUserName  bool
	Password     []byte
	HasPassword  bool

	Reconnect ReconnectPolicy

	IncomingStore store.Store
	OutgoingStore store.Store

	EventSink EventSink

	jwtAuth      *JWTAuth
	presetStream transport.Stream
}

// DefaultOptions returns MQTT 3.1.1, a clean session, a 10 second
// keep-alive, and no reconnection.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Protocol:     codec.MQTT,
		KeepAlive:    10 * time.Second,
		CleanSession: true,
		Reconnect:    ForeverDisconnect{},
	}
}

// ClientOption is an options-modifying function applied in order by
// Connect, last write wins for conflicting options.
type ClientOption func(*ClientOptions)

// RandomClientID returns a random, broker-friendly client identifier.
func RandomClientID() string { return shortuuid.New() }

// WithProtocol selects MQTT 3.1 (codec.MQIsdp) or MQTT 3.1.1 (codec.MQTT).
func WithProtocol(p codec.Protocol) ClientOption {
	return func(o *ClientOptions) { o.Protocol = p }
}

// WithKeepAlive sets the keep-alive interval. It also becomes the read and
// write deadline duration on the transport once connected.
func WithKeepAlive(d time.Duration) ClientOption {
	return func(o *ClientOptions) { o.KeepAlive = d }
}

// WithClientID sets an explicit client identifier.
func WithClientID(id string) ClientOption {
	return func(o *ClientOptions) { o.ClientID = id }
}

// WithCleanSession controls the CONNECT clean-session flag.
func WithCleanSession(clean bool) ClientOption {
	return func(o *ClientOptions) { o.CleanSession = clean }
}

// WithLastWill sets the last-will message the broker publishes on behalf of
// an ungracefully disconnected client.
func WithLastWill(topic string, message []byte, qos codec.QoS, retain bool) ClientOption {
	return func(o *ClientOptions) {
		o.LastWill = &codec.LastWill{Topic: topic, Message: message, QoS: qos, Retain: retain}
	}
}

// WithUserName sets CONNECT's username field. Mutually exclusive with
// WithJWTAuth; whichever option runs last wins.
func WithUserName(name string) ClientOption {
	return func(o *ClientOptions) {
		o.UserName = name
		o.HasUserName = true
		o.jwtAuth = nil
	}
}

// WithPassword sets CONNECT's password field. Mutually exclusive with
// WithJWTAuth; whichever option runs last wins.
func WithPassword(password []byte) ClientOption {
	return func(o *ClientOptions) {
		o.Password = password
		o.HasPassword = true
		o.jwtAuth = nil
	}
}

// WithJWTAuth signs a short-lived HS256 JWT at Connect time and places it in
// CONNECT's password field, with keyID as the username. Composes with, and
// overrides, explicit WithUserName/WithPassword options applied earlier.
func WithJWTAuth(keyID string, signingKey []byte, ttl time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.jwtAuth = &JWTAuth{KeyID: keyID, SigningKey: signingKey, TTL: ttl}
	}
}

// WithReconnectPolicy sets the reconnection behavior on transport loss.
func WithReconnectPolicy(p ReconnectPolicy) ClientOption {
	return func(o *ClientOptions) { o.Reconnect = p }
}

// WithIncomingStore sets the store used to persist inbound QoS2 messages
// between PUBREC and the user's complete(pid) call.
func WithIncomingStore(s store.Store) ClientOption {
	return func(o *ClientOptions) { o.IncomingStore = s }
}

// WithOutgoingStore sets the store used to persist outbound QoS2 messages
// between PUBLISH and the matching PUBREC.
func WithOutgoingStore(s store.Store) ClientOption {
	return func(o *ClientOptions) { o.OutgoingStore = s }
}

// WithEventSink attaches a diagnostics sink. See ConnectionEvent.
func WithEventSink(sink EventSink) ClientOption {
	return func(o *ClientOptions) { o.EventSink = sink }
}

// resolveCredentials applies a pending JWTAuth (if any) on top of whatever
// plain UserName/Password were configured, at the moment CONNECT is built.
func (o *ClientOptions) resolveCredentials(now time.Time) error {
	if o.jwtAuth == nil {
		return nil
	}
	user, pass, err := o.jwtAuth.connectCredentials(o.ClientID, now)
	if err != nil {
		return fmt.Errorf("session: jwt auth: %w", err)
	}
	o.UserName = user
	o.HasUserName = true
	o.Password = pass
	o.HasPassword = true
	return nil
}
