package xmldsig

import "errors"

// Errores centinela del módulo de firma. La invalidez criptográfica de una
// firma NO es un error: se reporta en VerificationResult. ErrVerifier se
// reserva para entrada malformada (sin nodo Signature, clave irresoluble).
var (
	ErrKeyLoad             = errors.New("xmldsig: no se pudo cargar la llave")
	ErrCertificateMismatch = errors.New("xmldsig: el certificado no corresponde a la llave privada")
	ErrTemplateNotFound    = errors.New("xmldsig: no se encontró nodo Signature en el documento")
	ErrTemplate            = errors.New("xmldsig: plantilla de firma inválida")
	ErrSigning             = errors.New("xmldsig: error al firmar")
	ErrVerifier            = errors.New("xmldsig: entrada de verificación malformada")
)
