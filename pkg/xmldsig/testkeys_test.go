package xmldsig_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/banca-ws/pkg/xmldsig"
)

// applicationRequestXML es un ApplicationRequest mínimo al estilo de los
// servicios web bancarios finlandeses (bxd.fi).
const applicationRequestXML = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<ApplicationRequest xmlns="http://bxd.fi/xmldata/">` +
	`<CustomerId>12345678</CustomerId>` +
	`<Command>UploadFile</Command>` +
	`<Timestamp>2026-08-25T12:00:00+03:00</Timestamp>` +
	`<Environment>TEST</Environment>` +
	`<SoftwareId>banca-ws</SoftwareId>` +
	`<Content>U0dWc2JHOD0=</Content>` +
	`</ApplicationRequest>`

// genTestKey genera una llave RSA 2048 con certificado autofirmado adjunto y
// devuelve además el certificado en PEM para cargar en el KeysManager.
func genTestKey(t *testing.T, commonName string) (*xmldsig.SigningKey, []byte) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generar llave RSA de prueba")

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName, Organization: []string{"Banca WS Test"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err, "crear certificado autofirmado")
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	key := &xmldsig.SigningKey{Name: commonName, PrivateKey: priv}
	require.NoError(t, key.AttachCertificate(cert))

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return key, certPEM
}

// keyPEM serializa la llave privada en PKCS#8 PEM.
func keyPEM(t *testing.T, priv *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}
