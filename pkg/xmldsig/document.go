// Lectura y escritura de documentos XML. Los bancos nórdicos todavía envían
// respuestas en ISO-8859-1, así que el lector acepta charsets legados.

package xmldsig

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
)

// ReadDocument parsea un documento XML. Acepta UTF-8, ISO-8859-1/15 y
// Windows-1252 según la declaración de encoding del documento.
func ReadDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("xmldsig: parsear XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("xmldsig: documento sin elemento raíz")
	}
	return doc, nil
}

// ReadDocumentFile lee y parsea un documento XML desde disco.
func ReadDocumentFile(path string) (*etree.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xmldsig: leer %s: %w", path, err)
	}
	return ReadDocument(data)
}

// WriteDocument serializa el documento sin reindentar: el contenido firmado
// no debe alterarse después de calcular los digests.
func WriteDocument(doc *etree.Document) ([]byte, error) {
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xmldsig: serializar XML: %w", err)
	}
	return data, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "iso-8859-15", "iso8859-15":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("xmldsig: charset no soportado: %s", charset)
}

// ── Búsqueda por nombre local ─────────────────────────────────────────────────
// Las plantillas de los bancos usan prefijos distintos (ds:, dsig:, ninguno),
// por eso la búsqueda compara solo el nombre local del tag.

// findAllLocal recolecta los descendientes (incluido el propio el) cuyo tag
// local coincide.
func findAllLocal(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	if el.Tag == tag {
		out = append(out, el)
	}
	for _, child := range el.ChildElements() {
		out = append(out, findAllLocal(child, tag)...)
	}
	return out
}

// childLocal devuelve el primer hijo directo con el tag local dado, o nil.
func childLocal(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

// childrenLocal devuelve los hijos directos con el tag local dado.
func childrenLocal(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
		}
	}
	return out
}

// childElemIndex devuelve la posición de el entre los hijos-elemento de parent.
func childElemIndex(parent, el *etree.Element) int {
	for i, child := range parent.ChildElements() {
		if child == el {
			return i
		}
	}
	return -1
}

// relativeElemPath calcula la ruta de índices desde base hasta target.
// Devuelve false si target no es descendiente de base.
func relativeElemPath(base, target *etree.Element) ([]int, bool) {
	var path []int
	for cur := target; cur != base; {
		parent := cur.Parent()
		if parent == nil {
			return nil, false
		}
		idx := childElemIndex(parent, cur)
		if idx < 0 {
			return nil, false
		}
		path = append([]int{idx}, path...)
		cur = parent
	}
	return path, true
}

// elementAtPath navega la ruta de índices desde root.
func elementAtPath(root *etree.Element, path []int) *etree.Element {
	cur := root
	for _, idx := range path {
		children := cur.ChildElements()
		if idx >= len(children) {
			return nil
		}
		cur = children[idx]
	}
	return cur
}
