package xmldsig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/banca-ws/pkg/xmldsig"
)

func TestReadDocumentISO88591(t *testing.T) {
	// "Häkkinen Äö" en ISO-8859-1: bytes fuera de ASCII sin codificar en UTF-8.
	raw := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><Doc><Name>H`),
		0xE4, 0x6B, 0x6B, 0x69, 0x6E, 0x65, 0x6E, ' ', 0xC4, 0xF6)
	raw = append(raw, []byte(`</Name></Doc>`)...)

	doc, err := xmldsig.ReadDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, "Häkkinen Äö", doc.Root().FindElement("./Name").Text())
}

func TestReadDocumentCharsetNoSoportado(t *testing.T) {
	_, err := xmldsig.ReadDocument([]byte(`<?xml version="1.0" encoding="EBCDIC-US"?><Doc/>`))
	require.Error(t, err)
}

func TestReadDocumentSinRaiz(t *testing.T) {
	_, err := xmldsig.ReadDocument([]byte(`<?xml version="1.0"?>`))
	require.Error(t, err)

	_, err = xmldsig.ReadDocument([]byte(`esto no es XML <`))
	require.Error(t, err)
}

func TestWriteDocumentPreservaContenido(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)
	data, err := xmldsig.WriteDocument(doc)
	require.NoError(t, err)
	// Sin reindentado: el contenido firmado no se altera al serializar.
	assert.Equal(t, applicationRequestXML, string(data))
}
