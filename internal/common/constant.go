package common

// APIKeyHeaderName is the header carrying the project's public API key on
// every identity-provider request.
const APIKeyHeaderName = "apikey"

// Local storage keys and key prefixes.
const (
	// AuthTokenKeyFormat names the persisted provider session for a project ref.
	AuthTokenKeyFormat = "sb-%s-auth-token"

	// MigratedMarkerPrefix marks users whose offline lists were uploaded.
	MigratedMarkerPrefix = "cofind_migrated_"
)

// DefaultArtifactPrefixes are the locally persisted keys removed on sign-out.
var DefaultArtifactPrefixes = []string{
	"sb-",
	"supabase",
	"cofind_favorites_",
	"cofind_want_to_visit_",
	"cache_",
}
