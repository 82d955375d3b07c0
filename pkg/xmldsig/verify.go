// Verificador: recalcula los digests de cada Reference y valida
// SignatureValue contra la llave resuelta en el KeysManager. Una firma
// inválida es un resultado normal, no un error; ErrVerifier se reserva para
// entrada malformada.

package xmldsig

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// Razones de invalidez reportadas en VerificationResult.
const (
	ReasonDigestMismatch    = "digest mismatch"
	ReasonSignatureMismatch = "signature mismatch"
)

// VerificationResult es el resultado estructurado de la verificación.
type VerificationResult struct {
	Valid   bool
	Reason  string // vacío cuando Valid
	KeyName string // nombre de la llave resuelta en el manager
}

// Verifier valida firmas enveloped contra un KeysManager de solo lectura.
type Verifier struct {
	km  *KeysManager
	log zerolog.Logger
}

// NewVerifier crea un verificador sobre el manager dado.
func NewVerifier(km *KeysManager) *Verifier {
	return &Verifier{km: km, log: zerolog.Nop()}
}

// WithLogger fija el logger del verificador.
func (v *Verifier) WithLogger(log zerolog.Logger) *Verifier {
	v.log = log
	return v
}

// Verify localiza el nodo Signature, resuelve la llave y valida digests y
// firma. Falla con ErrVerifier solo ante entrada malformada (sin Signature,
// llave irresoluble, algoritmo desconocido, base64 corrupto).
func (v *Verifier) Verify(doc *etree.Document) (*VerificationResult, error) {
	sig, err := LocateTemplate(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifier, err)
	}
	spec, err := parseSignedInfo(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifier, err)
	}
	hash, ok := hashForSignatureURI(spec.sigURI)
	if !ok {
		return nil, fmt.Errorf("%w: SignatureMethod no soportado: %s", ErrVerifier, spec.sigURI)
	}

	key, err := v.resolveKey(sig)
	if err != nil {
		return nil, err
	}

	for _, ref := range spec.refs {
		digestHash, ok := hashForDigestURI(ref.digestURI)
		if !ok {
			return nil, fmt.Errorf("%w: DigestMethod no soportado: %s", ErrVerifier, ref.digestURI)
		}
		stored, err := base64.StdEncoding.DecodeString(compactBase64(ref.digestEl.Text()))
		if err != nil {
			return nil, fmt.Errorf("%w: DigestValue no es base64 válido", ErrVerifier)
		}
		data, err := dereference(doc, sig, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: Reference URI=%q: %v", ErrVerifier, ref.uri, err)
		}
		h := digestHash.New()
		h.Write(data)
		if !bytes.Equal(h.Sum(nil), stored) {
			v.log.Debug().Str("uri", ref.uri).Msg("digest de Reference no coincide")
			return &VerificationResult{Valid: false, Reason: ReasonDigestMismatch, KeyName: key.Name}, nil
		}
	}

	sigValueEl := childLocal(sig, "SignatureValue")
	if sigValueEl == nil {
		return nil, fmt.Errorf("%w: Signature sin SignatureValue", ErrVerifier)
	}
	sigValue, err := base64.StdEncoding.DecodeString(compactBase64(sigValueEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: SignatureValue no es base64 válido", ErrVerifier)
	}
	canonical, err := canonicalize(spec.el, spec.c14nURI)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", ErrVerifier, err)
	}
	h := hash.New()
	h.Write(canonical)
	if err := rsa.VerifyPKCS1v15(key.PublicKey, hash, h.Sum(nil), sigValue); err != nil {
		return &VerificationResult{Valid: false, Reason: ReasonSignatureMismatch, KeyName: key.Name}, nil
	}
	return &VerificationResult{Valid: true, KeyName: key.Name}, nil
}

// resolveKey resuelve la llave de verificación en orden: KeyName,
// X509IssuerSerial, certificado embebido presente en el manager y, como
// último recurso, la única llave del manager (contrato de xmlsec1 con
// --pubkey-pem). Irresoluble es entrada malformada: ErrVerifier.
func (v *Verifier) resolveKey(sig *etree.Element) (*ManagedKey, error) {
	keyInfo := childLocal(sig, "KeyInfo")
	if keyInfo != nil {
		if keyNameEl := childLocal(keyInfo, "KeyName"); keyNameEl != nil {
			name := strings.TrimSpace(keyNameEl.Text())
			if key := v.km.ByName(name); key != nil {
				return key, nil
			}
			return nil, fmt.Errorf("%w: KeyName %q no está en el keys manager", ErrVerifier, name)
		}
		if x509Data := childLocal(keyInfo, "X509Data"); x509Data != nil {
			if issuerSerial := childLocal(x509Data, "X509IssuerSerial"); issuerSerial != nil {
				issuer := textOfChild(issuerSerial, "X509IssuerName")
				serial := textOfChild(issuerSerial, "X509SerialNumber")
				if key := v.km.ByIssuerSerial(issuer, serial); key != nil {
					return key, nil
				}
			}
			if certEl := childLocal(x509Data, "X509Certificate"); certEl != nil && strings.TrimSpace(certEl.Text()) != "" {
				der, err := base64.StdEncoding.DecodeString(compactBase64(certEl.Text()))
				if err != nil {
					return nil, fmt.Errorf("%w: X509Certificate no es base64 válido", ErrVerifier)
				}
				if _, err := x509.ParseCertificate(der); err != nil {
					return nil, fmt.Errorf("%w: X509Certificate embebido inválido", ErrVerifier)
				}
				if key := v.km.ByCertificateDER(der); key != nil {
					return key, nil
				}
			}
		}
	}
	if key := v.km.Single(); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: no se pudo resolver la llave de verificación", ErrVerifier)
}

// Verify es la forma de conveniencia sin construir un Verifier.
func Verify(doc *etree.Document, km *KeysManager) (*VerificationResult, error) {
	return NewVerifier(km).Verify(doc)
}

func textOfChild(el *etree.Element, tag string) string {
	if child := childLocal(el, tag); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}

// compactBase64 tolera saltos de línea y sangría dentro de valores base64.
func compactBase64(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
