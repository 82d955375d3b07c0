package xmlenc_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/banca-ws/pkg/xmldsig"
	"github.com/jhoicas/banca-ws/pkg/xmlenc"
)

const applicationResponseXML = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<ApplicationResponse xmlns="http://bxd.fi/xmldata/">` +
	`<CustomerId>12345678</CustomerId>` +
	`<ResponseCode>00</ResponseCode>` +
	`<ResponseText>OK</ResponseText>` +
	`<Content>U0dWc2JHOD0=</Content>` +
	`</ApplicationResponse>`

// genEncKey genera una llave RSA con certificado autofirmado para el cifrado.
func genEncKey(t *testing.T, name string) *xmldsig.SigningKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	key := &xmldsig.SigningKey{Name: name, PrivateKey: priv}
	require.NoError(t, key.AttachCertificate(cert))
	return key
}

// encryptAndReparse cifra el documento completo y lo devuelve serializado y
// re-parseado, como llegaría al receptor.
func encryptAndReparse(t *testing.T, opts xmlenc.Options) *etree.Document {
	t.Helper()
	doc, err := xmldsig.ReadDocument([]byte(applicationResponseXML))
	require.NoError(t, err)
	require.NoError(t, xmlenc.EncryptDocument(doc, opts))

	data, err := xmldsig.WriteDocument(doc)
	require.NoError(t, err)
	reparsed, err := xmldsig.ReadDocument(data)
	require.NoError(t, err)
	return reparsed
}

func TestCifradoDescifradoGCMConOAEP(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	doc := encryptAndReparse(t, xmlenc.Options{
		Recipient:     key.Certificate,
		RecipientName: "banco-cifrado",
	})
	require.Equal(t, "EncryptedData", doc.Root().Tag, "la raíz queda reemplazada por el bloque cifrado")

	km := xmldsig.NewKeysManager()
	require.NoError(t, km.AddSigningKey(key))

	result, err := xmlenc.Decrypt(doc, km)
	require.NoError(t, err)
	require.NotNil(t, result.Replaced, "Type=#Element reemplaza el elemento en el documento")
	assert.Nil(t, result.Raw)

	assert.Equal(t, "ApplicationResponse", doc.Root().Tag)
	assert.Equal(t, "00", doc.Root().FindElement("./ResponseCode").Text())
}

func TestCifradoDescifradoCBCConRSA15(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	doc := encryptAndReparse(t, xmlenc.Options{
		ContentAlgorithm: xmlenc.AlgAES128CBC,
		KeyTransport:     xmlenc.AlgRSA15,
		Recipient:        key.Certificate,
		RecipientName:    "banco-cifrado",
	})

	km := xmldsig.NewKeysManager()
	require.NoError(t, km.AddSigningKey(key))

	result, err := xmlenc.Decrypt(doc, km)
	require.NoError(t, err)
	require.NotNil(t, result.Replaced)
	assert.Equal(t, "ApplicationResponse", doc.Root().Tag)
	assert.Equal(t, "OK", doc.Root().FindElement("./ResponseText").Text())
}

func TestDescifradoRepetibleSobreCopiasFrescas(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	encrypted := encryptAndReparse(t, xmlenc.Options{
		Recipient:     key.Certificate,
		RecipientName: "banco-cifrado",
	})
	data, err := xmldsig.WriteDocument(encrypted)
	require.NoError(t, err)

	km := xmldsig.NewKeysManager()
	require.NoError(t, km.AddSigningKey(key))

	var previous string
	for i := 0; i < 3; i++ {
		doc, err := xmldsig.ReadDocument(data)
		require.NoError(t, err)
		_, err = xmlenc.Decrypt(doc, km)
		require.NoError(t, err)
		out, err := xmldsig.WriteDocument(doc)
		require.NoError(t, err)
		if i > 0 {
			assert.Equal(t, previous, string(out), "el descifrado debe ser determinista")
		}
		previous = string(out)
	}
}

func TestDescifradoConLlaveAjena(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	other := genEncKey(t, "otra")
	doc := encryptAndReparse(t, xmlenc.Options{
		Recipient:     key.Certificate,
		RecipientName: "banco-cifrado",
	})

	km := xmldsig.NewKeysManager()
	require.NoError(t, km.AddSigningKey(other))

	_, err := xmlenc.Decrypt(doc, km)
	require.ErrorIs(t, err, xmlenc.ErrDecryption, "el fallo debe ser opaco, sin detalle criptográfico")
}

func TestDescifradoKeyNameIrresoluble(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	doc := encryptAndReparse(t, xmlenc.Options{
		Recipient:     key.Certificate,
		RecipientName: "nombre-desconocido",
	})

	// Con varias entradas no hay fallback de llave única y el KeyName no
	// resuelve: fallo opaco.
	km := xmldsig.NewKeysManager()
	require.NoError(t, km.AddSigningKey(key))
	require.NoError(t, km.AddSigningKey(genEncKey(t, "segunda")))

	_, err := xmlenc.Decrypt(doc, km)
	require.ErrorIs(t, err, xmlenc.ErrDecryption)
}

func TestDescifradoSinTypeEntregaBytesCrudos(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	doc := encryptAndReparse(t, xmlenc.Options{
		Recipient:     key.Certificate,
		RecipientName: "banco-cifrado",
	})
	doc.Root().RemoveAttr("Type")

	km := xmldsig.NewKeysManager()
	require.NoError(t, km.AddSigningKey(key))

	result, err := xmlenc.Decrypt(doc, km)
	require.NoError(t, err)
	assert.Nil(t, result.Replaced)
	assert.Contains(t, string(result.Raw), "<CustomerId>12345678</CustomerId>")
}

func TestCifradoSinDestinatario(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationResponseXML))
	require.NoError(t, err)
	err = xmlenc.EncryptDocument(doc, xmlenc.Options{})
	require.ErrorIs(t, err, xmlenc.ErrEncryption)
}

func TestCifradoAlgoritmoNoSoportado(t *testing.T) {
	key := genEncKey(t, "banco-cifrado")
	doc, err := xmldsig.ReadDocument([]byte(applicationResponseXML))
	require.NoError(t, err)
	err = xmlenc.EncryptDocument(doc, xmlenc.Options{
		ContentAlgorithm: "http://www.w3.org/2001/04/xmlenc#tripledes-cbc",
		Recipient:        key.Certificate,
	})
	require.ErrorIs(t, err, xmlenc.ErrEncryption)
}
