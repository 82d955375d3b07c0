// Plantillas de firma. Dos modos tras una misma interfaz:
//
//   - Locate: busca un nodo Signature ya presente en el documento. Es el modo
//     primario: las plantillas SOAP de los bancos traen la firma pre-autorada
//     y al menos un endpoint rechaza plantillas construidas dinámicamente.
//   - Construct: arma la plantilla completa bajo la raíz (C14N exclusiva,
//     RSA-SHA1|RSA-SHA256, una Reference URI="" con transformadas
//     enveloped + exc-c14n, KeyInfo con placeholder X509Certificate y
//     X509IssuerSerial del certificado viejo al renovar).

package xmldsig

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// TemplateMode selecciona cómo obtener la plantilla de firma.
type TemplateMode int

const (
	// ModeLocate usa la plantilla Signature ya presente en el documento.
	ModeLocate TemplateMode = iota
	// ModeConstruct arma una plantilla nueva bajo la raíz.
	ModeConstruct
)

// IssuerSerial identifica al emisor del certificado para X509IssuerSerial.
// En la renovación de certificados (WS-PKI) se toma del certificado de firma
// anterior: el banco valida la identidad del emisor, no el certificado embebido.
type IssuerSerial struct {
	Name   string
	Serial string
}

// TemplateOptions controla la construcción de la plantilla.
type TemplateOptions struct {
	// Algorithm es el par firma+digest. Por defecto RSASHA256.
	Algorithm SignatureAlgorithm
	// DigestURI permite fijar el DigestMethod explícitamente; debe coincidir
	// con el algoritmo de firma o la construcción se rechaza.
	DigestURI string
	// Canonicalization es la URI del CanonicalizationMethod. Por defecto
	// C14N exclusiva.
	Canonicalization string
	// IssuerSerial, si está presente, se emite en KeyInfo/X509Data.
	IssuerSerial *IssuerSerial
	// SignatureID es el atributo Id del nodo Signature; por defecto se genera
	// un UUID.
	SignatureID string
}

func (o TemplateOptions) withDefaults() TemplateOptions {
	if o.Algorithm == "" {
		o.Algorithm = RSASHA256
	}
	if o.Canonicalization == "" {
		o.Canonicalization = AlgExcC14N
	}
	if o.SignatureID == "" {
		o.SignatureID = "sig-" + uuid.NewString()
	}
	return o
}

// ConstructTemplate arma la plantilla Signature bajo la raíz del documento y
// devuelve el nodo creado. El par firma/digest inconsistente se rechaza aquí,
// no al firmar.
func ConstructTemplate(doc *etree.Document, opts TemplateOptions) (*etree.Element, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", ErrTemplate)
	}
	opts = opts.withDefaults()
	if _, ok := opts.Algorithm.Hash(); !ok {
		return nil, fmt.Errorf("%w: algoritmo de firma no soportado: %s", ErrTemplate, opts.Algorithm)
	}
	if opts.DigestURI != "" && opts.DigestURI != opts.Algorithm.DigestURI() {
		return nil, fmt.Errorf("%w: DigestMethod %s no corresponde al SignatureMethod %s",
			ErrTemplate, opts.DigestURI, opts.Algorithm)
	}
	if _, err := canonicalizerForURI(opts.Canonicalization); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	sig := root.CreateElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NamespaceDS)
	sig.CreateAttr("Id", opts.SignatureID)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", opts.Canonicalization)
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", string(opts.Algorithm))

	// Una sola Reference URI="": firma todo el documento menos la propia firma.
	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("ds:Transforms")
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", TransformEnveloped)
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", opts.Canonicalization)
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", opts.Algorithm.DigestURI())
	ref.CreateElement("ds:DigestValue")

	sig.CreateElement("ds:SignatureValue")

	keyInfo := sig.CreateElement("ds:KeyInfo")
	x509Data := keyInfo.CreateElement("ds:X509Data")
	if opts.IssuerSerial != nil {
		issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
		issuerSerial.CreateElement("ds:X509IssuerName").SetText(opts.IssuerSerial.Name)
		issuerSerial.CreateElement("ds:X509SerialNumber").SetText(opts.IssuerSerial.Serial)
	}
	// Placeholder: el firmador lo llena con el certificado en DER base64.
	x509Data.CreateElement("ds:X509Certificate")

	return sig, nil
}

// LocateTemplate busca el nodo Signature pre-autorado en el documento.
// Falla con ErrTemplateNotFound si no existe y con ErrTemplate si hay más de
// uno (la plantilla del banco trae exactamente una firma).
func LocateTemplate(doc *etree.Document) (*etree.Element, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", ErrTemplate)
	}
	var found []*etree.Element
	for _, el := range findAllLocal(root, "Signature") {
		// Un Signature sin SignedInfo no es una plantilla XMLDSig.
		if childLocal(el, "SignedInfo") != nil {
			found = append(found, el)
		}
	}
	switch len(found) {
	case 0:
		return nil, ErrTemplateNotFound
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("%w: el documento contiene %d nodos Signature", ErrTemplate, len(found))
}
