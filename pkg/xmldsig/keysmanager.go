// KeysManager: resolución de llaves por nombre o identidad del certificado
// para verificación y descifrado. Se construye una vez por lote de
// operaciones; después de construido es de solo lectura y puede compartirse
// entre goroutines.

package xmldsig

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ManagedKey es el material de una entrada del manager. PrivateKey solo está
// presente cuando la entrada se cargó desde una llave privada (descifrado).
type ManagedKey struct {
	Name        string
	PublicKey   *rsa.PublicKey
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// KeysManager mapea nombres e identidades de certificado a material de llave.
type KeysManager struct {
	order  []string
	byName map[string]*ManagedKey
}

// KeyEntry es una entrada PEM (llave o certificado) con nombre para la carga
// por lote.
type KeyEntry struct {
	Name string
	PEM  []byte
}

// NewKeysManager crea un manager vacío.
func NewKeysManager() *KeysManager {
	return &KeysManager{byName: map[string]*ManagedKey{}}
}

// NewKeysManagerFromEntries carga cada entrada de forma independiente: una
// entrada malformada no aborta el lote. Con failFast se devuelve el primer
// error; si no, se devuelve el manager con las entradas buenas junto con los
// errores acumulados (errors.Join) y el llamador decide si son fatales.
func NewKeysManagerFromEntries(entries []KeyEntry, failFast bool) (*KeysManager, error) {
	km := NewKeysManager()
	var errs []error
	for _, entry := range entries {
		if err := km.AddPEM(entry.Name, entry.PEM); err != nil {
			if failFast {
				return nil, err
			}
			errs = append(errs, err)
		}
	}
	return km, errors.Join(errs...)
}

// AddPEM agrega una entrada desde datos PEM: certificado, llave pública o
// llave privada. Falla con ErrKeyLoad si el PEM no contiene nada utilizable.
func (m *KeysManager) AddPEM(name string, pemBytes []byte) error {
	key := &ManagedKey{Name: name}
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("%w: entrada %q: certificado inválido: %v", ErrKeyLoad, name, err)
			}
			pub, ok := cert.PublicKey.(*rsa.PublicKey)
			if !ok {
				return fmt.Errorf("%w: entrada %q: el certificado no es RSA", ErrKeyLoad, name)
			}
			key.Certificate = cert
			key.PublicKey = pub
		case "PUBLIC KEY":
			parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return fmt.Errorf("%w: entrada %q: llave pública inválida: %v", ErrKeyLoad, name, err)
			}
			pub, ok := parsed.(*rsa.PublicKey)
			if !ok {
				return fmt.Errorf("%w: entrada %q: solo se soportan llaves RSA", ErrKeyLoad, name)
			}
			key.PublicKey = pub
		case "RSA PUBLIC KEY":
			pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return fmt.Errorf("%w: entrada %q: llave pública inválida: %v", ErrKeyLoad, name, err)
			}
			key.PublicKey = pub
		case "RSA PRIVATE KEY", "PRIVATE KEY":
			priv, err := parsePrivateKeyBlock(block, "")
			if err != nil {
				return fmt.Errorf("%w: entrada %q: %v", ErrKeyLoad, name, err)
			}
			key.PrivateKey = priv
			key.PublicKey = &priv.PublicKey
		}
	}
	if key.PublicKey == nil {
		return fmt.Errorf("%w: entrada %q: el PEM no contiene llave ni certificado", ErrKeyLoad, name)
	}
	m.add(key)
	return nil
}

// AddPEMFile agrega una entrada leyendo el PEM desde disco.
func (m *KeysManager) AddPEMFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: entrada %q: leer %s: %v", ErrKeyLoad, name, path, err)
	}
	return m.AddPEM(name, data)
}

// AddSigningKey agrega una SigningKey ya cargada (típico para descifrado).
func (m *KeysManager) AddSigningKey(key *SigningKey) error {
	if key == nil || key.PrivateKey == nil {
		return fmt.Errorf("%w: SigningKey sin llave privada", ErrKeyLoad)
	}
	m.add(&ManagedKey{
		Name:        key.Name,
		PublicKey:   &key.PrivateKey.PublicKey,
		PrivateKey:  key.PrivateKey,
		Certificate: key.Certificate,
	})
	return nil
}

func (m *KeysManager) add(key *ManagedKey) {
	if _, exists := m.byName[key.Name]; !exists {
		m.order = append(m.order, key.Name)
	}
	m.byName[key.Name] = key
}

// ByName resuelve por nombre de llave (KeyName). Devuelve nil si no existe.
func (m *KeysManager) ByName(name string) *ManagedKey {
	return m.byName[name]
}

// ByIssuerSerial resuelve por identidad del emisor del certificado.
func (m *KeysManager) ByIssuerSerial(issuer, serial string) *ManagedKey {
	for _, name := range m.order {
		key := m.byName[name]
		if key.Certificate == nil {
			continue
		}
		if key.Certificate.Issuer.String() == issuer && key.Certificate.SerialNumber.String() == serial {
			return key
		}
	}
	return nil
}

// ByCertificateDER resuelve por igualdad byte a byte del certificado.
func (m *KeysManager) ByCertificateDER(der []byte) *ManagedKey {
	for _, name := range m.order {
		key := m.byName[name]
		if key.Certificate != nil && bytes.Equal(key.Certificate.Raw, der) {
			return key
		}
	}
	return nil
}

// Len devuelve la cantidad de entradas.
func (m *KeysManager) Len() int {
	return len(m.order)
}

// Single devuelve la única entrada del manager, o nil si hay cero o varias.
// Reproduce el contrato de xmlsec1 --pubkey-pem con una sola llave.
func (m *KeysManager) Single() *ManagedKey {
	if len(m.order) != 1 {
		return nil
	}
	return m.byName[m.order[0]]
}
