// Carga de llaves privadas y certificados desde PEM o PKCS#12.
// La llave se carga al inicio de la operación, se usa y se descarta;
// el cacheo (si lo hay) es responsabilidad del llamador.

package xmldsig

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// SigningKey es una llave privada RSA con certificado opcional y un nombre
// legible para resolución en el KeysManager.
type SigningKey struct {
	Name        string
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// LoadKeyPEM carga una llave privada RSA desde datos PEM. Si el bloque está
// cifrado se descifra con password. Si el PEM incluye además un bloque
// CERTIFICATE, el certificado queda adjunto.
func LoadKeyPEM(pemBytes []byte, password string) (*SigningKey, error) {
	key := &SigningKey{}
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY", "PRIVATE KEY":
			priv, err := parsePrivateKeyBlock(block, password)
			if err != nil {
				return nil, err
			}
			key.PrivateKey = priv
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: certificado adjunto inválido: %v", ErrKeyLoad, err)
			}
			key.Certificate = cert
		}
	}
	if key.PrivateKey == nil {
		return nil, fmt.Errorf("%w: el PEM no contiene una llave privada RSA", ErrKeyLoad)
	}
	if key.Certificate != nil {
		if err := verifyKeyPair(key.PrivateKey, key.Certificate); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// LoadKeyFile carga una llave privada desde un archivo PEM.
func LoadKeyFile(path, password string) (*SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leer %s: %v", ErrKeyLoad, path, err)
	}
	return LoadKeyPEM(data, password)
}

// LoadKeyP12 carga llave y certificado desde un keystore PKCS#12 (.p12/.pfx).
// El password puede ser vacío si el archivo no está protegido.
func LoadKeyP12(data []byte, password string) (*SigningKey, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: decodificar PKCS#12: %v", ErrKeyLoad, err)
	}
	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: el keystore no contiene una llave RSA", ErrKeyLoad)
	}
	key := &SigningKey{PrivateKey: rsaKey, Certificate: cert}
	if cert != nil {
		if err := verifyKeyPair(rsaKey, cert); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// LoadKeyP12File carga un keystore PKCS#12 desde disco.
func LoadKeyP12File(path, password string) (*SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leer %s: %v", ErrKeyLoad, path, err)
	}
	return LoadKeyP12(data, password)
}

// AttachCertificatePEM adjunta el certificado X.509 a la llave, validando que
// la llave pública del certificado corresponda a la privada.
func (k *SigningKey) AttachCertificatePEM(certPEM []byte) error {
	cert, err := LoadCertificatePEM(certPEM)
	if err != nil {
		return err
	}
	return k.AttachCertificate(cert)
}

// AttachCertificate adjunta un certificado ya parseado.
func (k *SigningKey) AttachCertificate(cert *x509.Certificate) error {
	if err := verifyKeyPair(k.PrivateKey, cert); err != nil {
		return err
	}
	k.Certificate = cert
	return nil
}

// LoadCertificatePEM parsea un certificado X.509 desde datos PEM.
func LoadCertificatePEM(pemBytes []byte) (*x509.Certificate, error) {
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("%w: el PEM no contiene un certificado", ErrKeyLoad)
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: certificado inválido: %v", ErrKeyLoad, err)
			}
			return cert, nil
		}
	}
}

// LoadCertificateFile parsea un certificado X.509 desde un archivo PEM.
func LoadCertificateFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leer %s: %v", ErrKeyLoad, path, err)
	}
	return LoadCertificatePEM(data)
}

func parsePrivateKeyBlock(block *pem.Block, password string) (*rsa.PrivateKey, error) {
	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // formato legado de los bancos
		if password == "" {
			return nil, fmt.Errorf("%w: llave cifrada, se requiere password", ErrKeyLoad)
		}
		dec, err := x509.DecryptPEMBlock(block, []byte(password)) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("%w: password incorrecto", ErrKeyLoad)
		}
		der = dec
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: llave privada inválida: %v", ErrKeyLoad, err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: solo se soportan llaves RSA", ErrKeyLoad)
	}
	return rsaKey, nil
}

// verifyKeyPair comprueba que la llave pública del certificado sea la de la
// llave privada (módulo y exponente iguales).
func verifyKeyPair(priv *rsa.PrivateKey, cert *x509.Certificate) error {
	if priv == nil || cert == nil {
		return fmt.Errorf("%w: llave o certificado nulo", ErrCertificateMismatch)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: el certificado no tiene llave pública RSA", ErrCertificateMismatch)
	}
	if pub.N.Cmp(priv.N) != 0 || pub.E != priv.E {
		return ErrCertificateMismatch
	}
	return nil
}
