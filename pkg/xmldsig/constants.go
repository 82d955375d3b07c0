// Constantes XMLDSig: namespaces y URIs de algoritmos soportados por los
// servicios web bancarios (firma RSA-SHA1 legada y RSA-SHA256 preferida).

package xmldsig

import "crypto"

// Namespaces.
const (
	NamespaceDS = "http://www.w3.org/2000/09/xmldsig#"
)

// Algoritmos de canonicalización.
const (
	AlgC14N    = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgC14N11  = "http://www.w3.org/2006/12/xml-c14n11"
	AlgExcC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

// Algoritmos de firma y digest.
const (
	AlgRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA1      = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"
	// Variante no estándar de SHA-256 emitida por algunas implementaciones;
	// se acepta al verificar pero nunca se emite.
	AlgSHA256Legacy = "http://www.w3.org/2000/09/xmldsig#sha256"
)

// Transformadas.
const (
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// SignatureAlgorithm identifica el par firma+digest (RSA-SHA1 o RSA-SHA256).
// El banco exige que el DigestMethod coincida con el SignatureMethod.
type SignatureAlgorithm string

const (
	RSASHA1   SignatureAlgorithm = AlgRSASHA1
	RSASHA256 SignatureAlgorithm = AlgRSASHA256
)

// Hash devuelve el hash criptográfico del algoritmo de firma.
func (a SignatureAlgorithm) Hash() (crypto.Hash, bool) {
	switch a {
	case RSASHA1:
		return crypto.SHA1, true
	case RSASHA256:
		return crypto.SHA256, true
	}
	return 0, false
}

// DigestURI devuelve la URI del DigestMethod que corresponde al algoritmo.
func (a SignatureAlgorithm) DigestURI() string {
	switch a {
	case RSASHA1:
		return AlgSHA1
	case RSASHA256:
		return AlgSHA256
	}
	return ""
}

// hashForDigestURI resuelve la URI de un DigestMethod a su hash.
func hashForDigestURI(uri string) (crypto.Hash, bool) {
	switch uri {
	case AlgSHA1:
		return crypto.SHA1, true
	case AlgSHA256, AlgSHA256Legacy:
		return crypto.SHA256, true
	}
	return 0, false
}

// hashForSignatureURI resuelve la URI de un SignatureMethod a su hash.
func hashForSignatureURI(uri string) (crypto.Hash, bool) {
	switch uri {
	case AlgRSASHA1:
		return crypto.SHA1, true
	case AlgRSASHA256:
		return crypto.SHA256, true
	}
	return 0, false
}
