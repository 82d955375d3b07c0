// Helpers de renovación de certificados (WS-PKI): generación de llaves RSA,
// CSR PKCS#10 y utilidades PEM. El CSR se inserta como blob base64 en la
// plantilla CreateCertificateRequest; este paquete no participa en la firma.

package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// DefaultKeyBits es el tamaño de llave que piden los bancos.
const DefaultKeyBits = 2048

// CreatePrivateKey genera una llave privada RSA. Con bits <= 0 usa
// DefaultKeyBits.
func CreatePrivateKey(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("pki: generar llave: %w", err)
	}
	return key, nil
}

// PrivateKeyPEM serializa la llave privada en PKCS#8 PEM sin cifrar.
func PrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("pki: serializar llave: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// CSRSubject son los campos del sujeto del CSR que exige el protocolo de
// renovación del banco.
type CSRSubject struct {
	CommonName         string
	OrganizationName   string
	OrganizationalUnit string
	CountryName        string
	LocalityName       string
	StateOrProvince    string
}

// CreateCSRPEM genera un CSR PKCS#10 en PEM para la llave dada.
func CreateCSRPEM(key *rsa.PrivateKey, subject CSRSubject) ([]byte, error) {
	name := pkix.Name{CommonName: subject.CommonName}
	if subject.OrganizationName != "" {
		name.Organization = []string{subject.OrganizationName}
	}
	if subject.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{subject.OrganizationalUnit}
	}
	if subject.CountryName != "" {
		name.Country = []string{subject.CountryName}
	}
	if subject.LocalityName != "" {
		name.Locality = []string{subject.LocalityName}
	}
	if subject.StateOrProvince != "" {
		name.Province = []string{subject.StateOrProvince}
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:            name,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}, key)
	if err != nil {
		return nil, fmt.Errorf("pki: crear CSR: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der}), nil
}

// StripPEMHeaderFooter devuelve el base64 del primer bloque PEM en una sola
// línea, sin cabecera ni pie, listo para insertar en la plantilla XML.
func StripPEMHeaderFooter(pemData []byte) ([]byte, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("pki: los datos no son PEM")
	}
	return []byte(base64.StdEncoding.EncodeToString(block.Bytes)), nil
}

// WriteCertPEMFile escribe un certificado recibido del banco como base64
// desnudo (sin BEGIN/END) envolviéndolo a 64 columnas con cabecera y pie.
func WriteCertPEMFile(filename string, certBase64 []byte) error {
	if containsPEMMarkers(certBase64) {
		return fmt.Errorf("pki: WriteCertPEMFile espera base64 sin cabecera/pie PEM")
	}
	fp, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("pki: crear %s: %w", filename, err)
	}
	defer fp.Close()
	if _, err := fp.WriteString("-----BEGIN CERTIFICATE-----\n"); err != nil {
		return err
	}
	data := compact(certBase64)
	for len(data) > 0 {
		n := 64
		if len(data) < n {
			n = len(data)
		}
		if _, err := fp.Write(append(data[:n:n], '\n')); err != nil {
			return err
		}
		data = data[n:]
	}
	if _, err := fp.WriteString("-----END CERTIFICATE-----\n"); err != nil {
		return err
	}
	return nil
}

// WritePEMFile escribe datos que ya traen cabecera y pie PEM.
func WritePEMFile(filename string, pemData []byte) error {
	if !containsPEMMarkers(pemData) {
		return fmt.Errorf("pki: WritePEMFile espera datos con cabecera/pie PEM")
	}
	if err := os.WriteFile(filename, pemData, 0o600); err != nil {
		return fmt.Errorf("pki: escribir %s: %w", filename, err)
	}
	return nil
}

// NewRequestID genera el RequestId de las llamadas WS-PKI.
func NewRequestID() string {
	return uuid.NewString()
}

func containsPEMMarkers(data []byte) bool {
	s := string(data)
	return strings.Contains(s, "BEGIN") && strings.Contains(s, "END")
}

func compact(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			out = append(out, b)
		}
	}
	return out
}
