// Canonicalización: C14N exclusiva (y 1.1) vía goxmldsig, C14N 1.0 inclusiva
// vía ucarion/c14n sobre los bytes serializados del subárbol.

package xmldsig

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/ucarion/c14n"
)

// canonicalizerForURI resuelve la URI del CanonicalizationMethod o de una
// transformada de canonicalización.
func canonicalizerForURI(uri string) (dsig.Canonicalizer, error) {
	switch uri {
	case AlgExcC14N:
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(""), nil
	case AlgC14N11:
		return dsig.MakeC14N11Canonicalizer(), nil
	case AlgC14N:
		return inclusiveCanonicalizer{}, nil
	}
	return nil, fmt.Errorf("algoritmo de canonicalización no soportado: %s", uri)
}

// canonicalize canonicaliza el elemento en el contexto de sus namespaces
// heredados: las declaraciones de ancestros se copian al subárbol antes de
// canonicalizar para que el resultado sea idéntico al firmar y al verificar.
func canonicalize(el *etree.Element, uri string) ([]byte, error) {
	canon, err := canonicalizerForURI(uri)
	if err != nil {
		return nil, err
	}
	return canon.Canonicalize(detachWithNamespaces(el))
}

// detachWithNamespaces copia el elemento y le agrega las declaraciones xmlns
// de sus ancestros que el subárbol no redeclara (la más cercana gana).
func detachWithNamespaces(el *etree.Element) *etree.Element {
	cp := el.Copy()
	declared := map[string]bool{}
	for _, attr := range cp.Attr {
		if attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns") {
			declared[nsDeclName(attr)] = true
		}
	}
	for parent := el.Parent(); parent != nil; parent = parent.Parent() {
		for _, attr := range parent.Attr {
			if attr.Space != "xmlns" && !(attr.Space == "" && attr.Key == "xmlns") {
				continue
			}
			name := nsDeclName(attr)
			if declared[name] {
				continue
			}
			declared[name] = true
			if attr.Space == "xmlns" {
				cp.CreateAttr("xmlns:"+attr.Key, attr.Value)
			} else {
				cp.CreateAttr("xmlns", attr.Value)
			}
		}
	}
	return cp
}

// nsDeclName identifica la declaración: prefijo declarado o "" para el default.
func nsDeclName(attr etree.Attr) string {
	if attr.Space == "xmlns" {
		return attr.Key
	}
	return ""
}

// inclusiveCanonicalizer aplica C14N 1.0 inclusiva serializando el subárbol y
// recanonicalizando el stream, igual que hace el servicio de firma de DIAN.
type inclusiveCanonicalizer struct{}

func (inclusiveCanonicalizer) Canonicalize(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func (inclusiveCanonicalizer) Algorithm() dsig.AlgorithmID {
	return dsig.AlgorithmID(AlgC14N)
}
