package vocab

func init() {
	register(&TypeSchema{
		Name:           "CryptographicKey",
		URI:            SecurityNS + "#Key",
		Entity:         true,
		DefaultContext: ActivityStreamsNamespace.([]interface{}),
		Properties: []PropertySchema{
			{Singular: "Owner", CompactName: "owner", URI: SecurityNS + "#owner", Functional: true, Range: []string{"Object"}},
			{Singular: "PublicKeyPem", CompactName: "publicKeyPem", URI: SecurityNS + "#publicKeyPem", Functional: true},
		},
	})
	register(&TypeSchema{
		Name:           "Multikey",
		URI:            "https://w3id.org/security#Multikey",
		Entity:         true,
		DefaultContext: []interface{}{W3IDSecurityDataV1},
		Properties: []PropertySchema{
			{Singular: "Controller", CompactName: "controller", URI: "https://w3id.org/security#controller", Functional: true, Range: []string{"Object"}},
			{Singular: "PublicKeyMultibase", CompactName: "publicKeyMultibase", URI: "https://w3id.org/security#publicKeyMultibase", Functional: true},
		},
	})
	register(&TypeSchema{
		Name:           "DataIntegrityProof",
		URI:            "https://w3id.org/security#DataIntegrityProof",
		Entity:         true,
		DefaultContext: []interface{}{W3IDSecurityDataV1},
		Properties: []PropertySchema{
			{Singular: "Cryptosuite", CompactName: "cryptosuite", URI: "https://w3id.org/security#cryptosuite", Functional: true},
			{Singular: "VerificationMethod", CompactName: "verificationMethod", URI: "https://w3id.org/security#verificationMethod", Functional: true, Range: []string{"Multikey"}},
			{Singular: "ProofPurpose", CompactName: "proofPurpose", URI: "https://w3id.org/security#proofPurpose", Functional: true},
			{Singular: "ProofValue", CompactName: "proofValue", URI: "https://w3id.org/security#proofValue", Functional: true},
			{Singular: "Created", CompactName: "created", URI: as2("created"), Functional: true},
		},
	})
}

// CryptographicKey is the legacy (pre-Multikey) RSA public key
// representation attached to actor.publicKey.
type CryptographicKey struct{ *Entity }

func (k *CryptographicKey) entity() *Entity { return k.Entity }
func NewCryptographicKey() *CryptographicKey {
	return &CryptographicKey{NewEntity("CryptographicKey")}
}

func (k *CryptographicKey) GetOwner() string { return scalarString(idStringOf(k.first(SecurityNS + "#owner"))) }
func (k *CryptographicKey) SetOwnerURL(raw string) {
	u, err := ParseURL(raw)
	if err == nil {
		k.setFunctional(SecurityNS+"#owner", u)
	}
}
func (k *CryptographicKey) GetPublicKeyPem() string {
	return scalarString(k.first(SecurityNS + "#publicKeyPem"))
}
func (k *CryptographicKey) SetPublicKeyPem(v string) { k.setFunctional(SecurityNS+"#publicKeyPem", v) }

func idStringOf(v Value) Value {
	if u := idOf(v); u != nil {
		return u.String()
	}
	return nil
}

// Multikey is the modern self-describing key representation used by
// assertionMethod / Integrity Proof verificationMethod.
type Multikey struct{ *Entity }

func (k *Multikey) entity() *Entity { return k.Entity }
func NewMultikey() *Multikey        { return &Multikey{NewEntity("Multikey")} }

func (k *Multikey) GetController() string {
	return scalarString(idStringOf(k.first("https://w3id.org/security#controller")))
}
func (k *Multikey) SetControllerURL(raw string) {
	u, err := ParseURL(raw)
	if err == nil {
		k.setFunctional("https://w3id.org/security#controller", u)
	}
}
func (k *Multikey) GetPublicKeyMultibase() string {
	return scalarString(k.first("https://w3id.org/security#publicKeyMultibase"))
}
func (k *Multikey) SetPublicKeyMultibase(v string) {
	k.setFunctional("https://w3id.org/security#publicKeyMultibase", v)
}

// DataIntegrityProof is a FEP-8b32 eddsa-jcs-2022 proof, embedded on the
// signed object's "proof" property by component E.
type DataIntegrityProof struct{ *Entity }

func (p *DataIntegrityProof) entity() *Entity { return p.Entity }
func NewDataIntegrityProof() *DataIntegrityProof {
	return &DataIntegrityProof{NewEntity("DataIntegrityProof")}
}

func (p *DataIntegrityProof) GetCryptosuite() string {
	return scalarString(p.first("https://w3id.org/security#cryptosuite"))
}
func (p *DataIntegrityProof) SetCryptosuite(v string) {
	p.setFunctional("https://w3id.org/security#cryptosuite", v)
}
func (p *DataIntegrityProof) GetVerificationMethod() string {
	return scalarString(idStringOf(p.first("https://w3id.org/security#verificationMethod")))
}
func (p *DataIntegrityProof) SetVerificationMethodURL(raw string) {
	u, err := ParseURL(raw)
	if err == nil {
		p.setFunctional("https://w3id.org/security#verificationMethod", u)
	}
}
func (p *DataIntegrityProof) GetProofPurpose() string {
	return scalarString(p.first("https://w3id.org/security#proofPurpose"))
}
func (p *DataIntegrityProof) SetProofPurpose(v string) {
	p.setFunctional("https://w3id.org/security#proofPurpose", v)
}
func (p *DataIntegrityProof) GetProofValue() string {
	return scalarString(p.first("https://w3id.org/security#proofValue"))
}
func (p *DataIntegrityProof) SetProofValue(v string) {
	p.setFunctional("https://w3id.org/security#proofValue", v)
}
