// Parseo de SignedInfo y desreferenciado de References: transformada
// enveloped + canonicalización, compartido entre el firmador y el verificador
// para que el digest se calcule exactamente igual en ambos lados.

package xmldsig

import (
	// Registran SHA-1 y SHA-256 para crypto.Hash.New.
	_ "crypto/sha1"
	_ "crypto/sha256"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

type signedInfoSpec struct {
	el      *etree.Element
	c14nURI string
	sigURI  string
	refs    []referenceSpec
}

type referenceSpec struct {
	uri        string
	transforms []string
	digestURI  string
	digestEl   *etree.Element
}

// parseSignedInfo valida la estructura de la plantilla. Los errores son
// genéricos; el llamador los envuelve con ErrSigning o ErrVerifier.
func parseSignedInfo(sig *etree.Element) (*signedInfoSpec, error) {
	signedInfo := childLocal(sig, "SignedInfo")
	if signedInfo == nil {
		return nil, fmt.Errorf("Signature sin SignedInfo")
	}
	c14nEl := childLocal(signedInfo, "CanonicalizationMethod")
	if c14nEl == nil {
		return nil, fmt.Errorf("SignedInfo sin CanonicalizationMethod")
	}
	sigMethodEl := childLocal(signedInfo, "SignatureMethod")
	if sigMethodEl == nil {
		return nil, fmt.Errorf("SignedInfo sin SignatureMethod")
	}
	spec := &signedInfoSpec{
		el:      signedInfo,
		c14nURI: c14nEl.SelectAttrValue("Algorithm", ""),
		sigURI:  sigMethodEl.SelectAttrValue("Algorithm", ""),
	}
	refs := childrenLocal(signedInfo, "Reference")
	if len(refs) == 0 {
		return nil, fmt.Errorf("SignedInfo sin References")
	}
	for _, refEl := range refs {
		ref := referenceSpec{uri: refEl.SelectAttrValue("URI", "")}
		if transformsEl := childLocal(refEl, "Transforms"); transformsEl != nil {
			for _, t := range childrenLocal(transformsEl, "Transform") {
				ref.transforms = append(ref.transforms, t.SelectAttrValue("Algorithm", ""))
			}
		}
		digestMethodEl := childLocal(refEl, "DigestMethod")
		if digestMethodEl == nil {
			return nil, fmt.Errorf("Reference sin DigestMethod")
		}
		ref.digestURI = digestMethodEl.SelectAttrValue("Algorithm", "")
		ref.digestEl = childLocal(refEl, "DigestValue")
		if ref.digestEl == nil {
			return nil, fmt.Errorf("Reference sin DigestValue")
		}
		spec.refs = append(spec.refs, ref)
	}
	return spec, nil
}

// dereference aplica la cadena de transformadas de la Reference y devuelve
// los bytes canónicos a digestar. URI="" es el documento completo menos el
// nodo Signature (firma enveloped); URI="#id" referencia por atributo Id.
func dereference(doc *etree.Document, sig *etree.Element, ref referenceSpec) ([]byte, error) {
	base, err := referenceBase(doc, ref.uri)
	if err != nil {
		return nil, err
	}

	enveloped := false
	c14nURI := ""
	for _, t := range ref.transforms {
		switch {
		case t == TransformEnveloped:
			enveloped = true
		case isC14NURI(t):
			if c14nURI == "" {
				c14nURI = t
			}
		default:
			return nil, fmt.Errorf("transformada no soportada: %s", t)
		}
	}
	if c14nURI == "" {
		// Sin transformada de canonicalización explícita se aplica C14N 1.0.
		c14nURI = AlgC14N
	}

	scratch := detachWithNamespaces(base)
	if enveloped {
		if path, ok := relativeElemPath(base, sig); ok {
			if target := elementAtPath(scratch, path); target != nil {
				if parent := target.Parent(); parent != nil {
					parent.RemoveChild(target)
				}
			}
		}
	}
	canon, err := canonicalizerForURI(c14nURI)
	if err != nil {
		return nil, err
	}
	return canon.Canonicalize(scratch)
}

func referenceBase(doc *etree.Document, uri string) (*etree.Element, error) {
	root := doc.Root()
	if uri == "" {
		return root, nil
	}
	if !strings.HasPrefix(uri, "#") {
		return nil, fmt.Errorf("URI de Reference no soportada: %s", uri)
	}
	id := strings.TrimPrefix(uri, "#")
	for _, el := range elementsWithID(root, id) {
		return el, nil
	}
	return nil, fmt.Errorf("no existe elemento con Id=%q", id)
}

func elementsWithID(root *etree.Element, id string) []*etree.Element {
	var out []*etree.Element
	for _, attr := range []string{"Id", "ID", "id"} {
		if root.SelectAttrValue(attr, "") == id {
			out = append(out, root)
			break
		}
	}
	for _, child := range root.ChildElements() {
		out = append(out, elementsWithID(child, id)...)
	}
	return out
}

func isC14NURI(uri string) bool {
	switch uri {
	case AlgC14N, AlgC14N11, AlgExcC14N:
		return true
	}
	return false
}
