package pki_test

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/banca-ws/pkg/pki"
	"github.com/jhoicas/banca-ws/pkg/xmldsig"
)

func TestCreateCSRPEM(t *testing.T) {
	key, err := pki.CreatePrivateKey(0)
	require.NoError(t, err)

	csrPEM, err := pki.CreateCSRPEM(key, pki.CSRSubject{
		CommonName:       "12345678",
		OrganizationName: "Empresa Oy",
		CountryName:      "FI",
	})
	require.NoError(t, err)

	block, _ := pem.Decode(csrPEM)
	require.NotNil(t, block)
	require.Equal(t, "CERTIFICATE REQUEST", block.Type)

	csr, err := x509.ParseCertificateRequest(block.Bytes)
	require.NoError(t, err)
	require.NoError(t, csr.CheckSignature(), "el CSR debe estar firmado por la llave")
	assert.Equal(t, "12345678", csr.Subject.CommonName)
	assert.Equal(t, []string{"Empresa Oy"}, csr.Subject.Organization)
	assert.Equal(t, []string{"FI"}, csr.Subject.Country)
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := pki.CreatePrivateKey(2048)
	require.NoError(t, err)
	pemData, err := pki.PrivateKeyPEM(key)
	require.NoError(t, err)

	loaded, err := xmldsig.LoadKeyPEM(pemData, "")
	require.NoError(t, err)
	assert.Equal(t, key.N, loaded.PrivateKey.N)
}

func TestStripPEMHeaderFooter(t *testing.T) {
	raw := []byte("contenido de prueba")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: raw})

	stripped, err := pki.StripPEMHeaderFooter(pemData)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), string(stripped))
	assert.NotContains(t, string(stripped), "\n", "el base64 va en una sola línea para la plantilla XML")

	_, err = pki.StripPEMHeaderFooter([]byte("no es PEM"))
	require.Error(t, err)
}

func TestWriteCertPEMFile(t *testing.T) {
	raw := make([]byte, 100)
	for i := range raw {
		raw[i] = byte(i)
	}
	certBase64 := []byte(base64.StdEncoding.EncodeToString(raw))
	path := filepath.Join(t.TempDir(), "banco.pem")

	require.NoError(t, pki.WriteCertPEMFile(path, certBase64))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "-----BEGIN CERTIFICATE-----\n"))
	assert.True(t, strings.HasSuffix(content, "-----END CERTIFICATE-----\n"))
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		assert.LessOrEqual(t, len(line), 64, "las líneas base64 van envueltas a 64 columnas")
	}

	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	assert.Equal(t, raw, block.Bytes)

	// Datos que ya traen cabecera PEM se rechazan.
	err = pki.WriteCertPEMFile(path, data)
	require.Error(t, err)
}

func TestWritePEMFile(t *testing.T) {
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("abc")})
	path := filepath.Join(t.TempDir(), "cert.pem")

	require.NoError(t, pki.WritePEMFile(path, pemData))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pemData, data)

	err = pki.WritePEMFile(path, []byte("sin marcadores"))
	require.Error(t, err, "WritePEMFile exige cabecera y pie PEM")
}

func TestNewRequestID(t *testing.T) {
	a, b := pki.NewRequestID(), pki.NewRequestID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
