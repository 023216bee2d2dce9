package calls

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carelink/comms/internal/domain/directory"
)

// DefaultTokenTTL is the media token lifetime used when the caller does not
// specify one.
const DefaultTokenTTL = time.Hour

// Capabilities are the media-server permissions granted to a participant.
type Capabilities struct {
	Publish          bool
	Subscribe        bool
	PublishData      bool
	RecordingControl bool
	RoomAdmin        bool
}

// capabilitiesByRole fixes what each role may do in a call. Admins monitor
// and manage but never publish media into a consultation.
var capabilitiesByRole = map[directory.Role]Capabilities{
	directory.RoleDoctor: {
		Publish:          true,
		Subscribe:        true,
		PublishData:      true,
		RecordingControl: true,
	},
	directory.RolePatient: {
		Publish:     true,
		Subscribe:   true,
		PublishData: true,
	},
	directory.RoleAdmin: {
		Subscribe:        true,
		RecordingControl: true,
		RoomAdmin:        true,
	},
}

// CapabilitiesFor returns the capability set for a role. Unknown roles get
// nothing.
func CapabilitiesFor(role directory.Role) (Capabilities, error) {
	caps, ok := capabilitiesByRole[role]
	if !ok {
		return Capabilities{}, fmt.Errorf("no media capabilities for role %q", role)
	}
	return caps, nil
}

// VideoGrant is the room permission claim embedded in a media token.
type VideoGrant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"roomJoin"`
	RoomAdmin      bool   `json:"roomAdmin,omitempty"`
	RoomRecord     bool   `json:"roomRecord,omitempty"`
	CanPublish     bool   `json:"canPublish"`
	CanSubscribe   bool   `json:"canSubscribe"`
	CanPublishData bool   `json:"canPublishData,omitempty"`
}

// mediaClaims is the JWT payload the media server expects.
type mediaClaims struct {
	jwt.RegisteredClaims
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
}

// TokenIssuer signs media access tokens with the media API credentials.
// With allowInsecure set and no secret configured it falls back to an
// unsigned development placeholder; production config validation refuses
// that combination before an issuer is ever constructed.
type TokenIssuer struct {
	apiKey        string
	apiSecret     string
	allowInsecure bool
}

// NewTokenIssuer creates an issuer for the given media credentials.
func NewTokenIssuer(apiKey, apiSecret string, allowInsecure bool) *TokenIssuer {
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret, allowInsecure: allowInsecure}
}

// Issue mints a media token for one participant in one room. The identity
// becomes the token subject; capabilities are derived from the role alone,
// never from the caller's request.
func (i *TokenIssuer) Issue(roomName, identity, name string, role directory.Role, ttl time.Duration) (string, error) {
	if roomName == "" || identity == "" {
		return "", fmt.Errorf("issue media token: room and identity are required")
	}
	caps, err := CapabilitiesFor(role)
	if err != nil {
		return "", fmt.Errorf("issue media token: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	if i.apiSecret == "" {
		if i.allowInsecure {
			return i.mockToken(roomName, identity, role), nil
		}
		return "", fmt.Errorf("issue media token: media API secret is not configured")
	}

	now := time.Now()
	claims := mediaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
		Video: VideoGrant{
			Room:           roomName,
			RoomJoin:       true,
			RoomAdmin:      caps.RoomAdmin,
			RoomRecord:     caps.RecordingControl,
			CanPublish:     caps.Publish,
			CanSubscribe:   caps.Subscribe,
			CanPublishData: caps.PublishData,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign media token: %w", err)
	}
	return signed, nil
}

// serviceToken mints a short-lived admin-grant token for server-to-server
// room management calls.
func (i *TokenIssuer) serviceToken(roomName string) (string, error) {
	if i.apiSecret == "" {
		return "", fmt.Errorf("service media token: media API secret is not configured")
	}
	now := time.Now()
	claims := mediaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   "comms-server",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Video: VideoGrant{
			Room:         roomName,
			RoomJoin:     false,
			RoomAdmin:    true,
			RoomRecord:   true,
			CanSubscribe: false,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign service media token: %w", err)
	}
	return signed, nil
}

// mockToken is the development-only placeholder returned when no media
// secret is configured. It carries no signature and grants nothing.
func (i *TokenIssuer) mockToken(roomName, identity string, role directory.Role) string {
	return fmt.Sprintf("mock.%s.%s.%s", roomName, identity, role)
}
