package vocab

// Well-known namespace URIs used throughout the vocabulary schemas.
const (
	ActivityStreamsNS = "https://www.w3.org/ns/activitystreams"
	SecurityNS        = "https://w3id.org/security/v1"
	W3IDSecurityDataV1 = "https://w3id.org/security/data-integrity/v1"

	// PublicURI is the distinguished collection URI denoting "everyone".
	PublicURI = ActivityStreamsNS + "#Public"
)

// ActivityStreamsNamespace is the default @context used by Object and its
// subtypes: a two-element context value combining the AS2 namespace and
// the security vocabulary that defines publicKey/owner, matching the
// context shape real fediverse software emits.
var ActivityStreamsNamespace interface{} = []interface{}{
	ActivityStreamsNS,
	SecurityNS,
}

func as2(term string) string { return ActivityStreamsNS + "#" + term }
