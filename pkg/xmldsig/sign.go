// Firmador: calcula los digests de cada Reference, canonicaliza SignedInfo,
// firma con RSA PKCS#1 v1.5 y embebe el certificado. Muta el documento en el
// lugar; el llamador es dueño exclusivo del documento durante la llamada.

package xmldsig

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// Signer firma documentos XML con plantilla localizada o construida.
type Signer struct {
	mode TemplateMode
	opts TemplateOptions
	log  zerolog.Logger
}

// NewSigner crea un firmador. ModeLocate es el modo primario: la plantilla
// viene pre-autorada en el XML del banco.
func NewSigner(mode TemplateMode, opts TemplateOptions) *Signer {
	return &Signer{mode: mode, opts: opts, log: zerolog.Nop()}
}

// WithLogger fija el logger del firmador.
func (s *Signer) WithLogger(log zerolog.Logger) *Signer {
	s.log = log
	return s
}

// Sign obtiene la plantilla según el modo y firma el documento en el lugar.
func (s *Signer) Sign(doc *etree.Document, key *SigningKey) error {
	var (
		sig *etree.Element
		err error
	)
	switch s.mode {
	case ModeConstruct:
		sig, err = ConstructTemplate(doc, s.opts)
	default:
		sig, err = LocateTemplate(doc)
	}
	if err != nil {
		return err
	}
	if err := SignTemplate(doc, sig, key); err != nil {
		return err
	}
	s.log.Debug().
		Str("modo", modeName(s.mode)).
		Str("firma", sig.SelectAttrValue("Id", "")).
		Msg("documento firmado")
	return nil
}

// SignTemplate firma el documento sobre una plantilla ya ubicada: escribe
// DigestValue por cada Reference, SignatureValue y X509Certificate.
func SignTemplate(doc *etree.Document, sig *etree.Element, key *SigningKey) error {
	if key == nil || key.PrivateKey == nil {
		return fmt.Errorf("%w: la llave no tiene parte privada", ErrSigning)
	}
	spec, err := parseSignedInfo(sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigning, err)
	}
	hash, ok := hashForSignatureURI(spec.sigURI)
	if !ok {
		return fmt.Errorf("%w: SignatureMethod no soportado: %s", ErrSigning, spec.sigURI)
	}

	// Certificado e IssuerSerial antes de los digests: KeyInfo queda fuera de
	// SignedInfo pero dentro del nodo Signature excluido por enveloped.
	if key.Certificate != nil {
		embedCertificate(sig, key)
	}

	for _, ref := range spec.refs {
		digestHash, ok := hashForDigestURI(ref.digestURI)
		if !ok {
			return fmt.Errorf("%w: DigestMethod no soportado: %s", ErrSigning, ref.digestURI)
		}
		data, err := dereference(doc, sig, ref)
		if err != nil {
			return fmt.Errorf("%w: Reference URI=%q: %v", ErrSigning, ref.uri, err)
		}
		h := digestHash.New()
		h.Write(data)
		ref.digestEl.SetText(base64.StdEncoding.EncodeToString(h.Sum(nil)))
	}

	canonical, err := canonicalize(spec.el, spec.c14nURI)
	if err != nil {
		return fmt.Errorf("%w: canonicalizar SignedInfo: %v", ErrSigning, err)
	}
	h := hash.New()
	h.Write(canonical)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key.PrivateKey, hash, h.Sum(nil))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sigValueEl := childLocal(sig, "SignatureValue")
	if sigValueEl == nil {
		return fmt.Errorf("%w: plantilla sin SignatureValue", ErrSigning)
	}
	sigValueEl.SetText(base64.StdEncoding.EncodeToString(signature))
	return nil
}

// embedCertificate llena el placeholder X509Certificate con el DER en base64
// y completa el X509IssuerSerial solo si la plantilla lo dejó vacío: en la
// renovación el llamador ya lo fijó con los datos del certificado anterior.
func embedCertificate(sig *etree.Element, key *SigningKey) {
	keyInfo := childLocal(sig, "KeyInfo")
	if keyInfo == nil {
		keyInfo = sig.CreateElement("ds:KeyInfo")
	}
	x509Data := childLocal(keyInfo, "X509Data")
	if x509Data == nil {
		x509Data = keyInfo.CreateElement("ds:X509Data")
	}
	certEl := childLocal(x509Data, "X509Certificate")
	if certEl == nil {
		certEl = x509Data.CreateElement("ds:X509Certificate")
	}
	certEl.SetText(base64.StdEncoding.EncodeToString(key.Certificate.Raw))

	if issuerSerial := childLocal(x509Data, "X509IssuerSerial"); issuerSerial != nil {
		if nameEl := childLocal(issuerSerial, "X509IssuerName"); nameEl != nil && nameEl.Text() == "" {
			nameEl.SetText(key.Certificate.Issuer.String())
		}
		if serialEl := childLocal(issuerSerial, "X509SerialNumber"); serialEl != nil && serialEl.Text() == "" {
			serialEl.SetText(key.Certificate.SerialNumber.String())
		}
	}
}

func modeName(mode TemplateMode) string {
	if mode == ModeConstruct {
		return "construct"
	}
	return "locate"
}
