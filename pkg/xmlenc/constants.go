// Constantes XML Encryption (xenc) para el cifrado de ApplicationRequest y
// el descifrado de respuestas del banco.

package xmlenc

// Namespaces.
const (
	NamespaceXENC = "http://www.w3.org/2001/04/xmlenc#"
	NamespaceDS   = "http://www.w3.org/2000/09/xmldsig#"
)

// Tipos de EncryptedData.
const (
	TypeElement = "http://www.w3.org/2001/04/xmlenc#Element"
	TypeContent = "http://www.w3.org/2001/04/xmlenc#Content"
)

// Cifrado de contenido.
const (
	AlgAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
)

// Transporte de llave.
const (
	AlgRSA15   = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	AlgRSAOAEP = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
)

func keySizeForContentAlg(uri string) (int, bool) {
	switch uri {
	case AlgAES128CBC, AlgAES128GCM:
		return 16, true
	case AlgAES256CBC, AlgAES256GCM:
		return 32, true
	}
	return 0, false
}

func isGCM(uri string) bool {
	return uri == AlgAES128GCM || uri == AlgAES256GCM
}
