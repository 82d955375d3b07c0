// Cifrador: genera una llave de sesión AES, cifra el elemento y transporta
// la llave con RSA hacia el certificado de cifrado del banco. Reemplaza el
// elemento por un bloque EncryptedData, como hace encrypt3 de xmlsec1 con el
// ApplicationRequest antes de enviarlo.

package xmlenc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// Options controla el cifrado.
type Options struct {
	// ContentAlgorithm es la URI del cifrado de contenido. Por defecto
	// AES-256-GCM.
	ContentAlgorithm string
	// KeyTransport es la URI del transporte de llave. Por defecto RSA-OAEP.
	KeyTransport string
	// Recipient es el certificado de cifrado del banco.
	Recipient *x509.Certificate
	// RecipientName se emite como KeyName del EncryptedKey para que el
	// receptor resuelva su llave privada.
	RecipientName string
}

func (o Options) withDefaults() Options {
	if o.ContentAlgorithm == "" {
		o.ContentAlgorithm = AlgAES256GCM
	}
	if o.KeyTransport == "" {
		o.KeyTransport = AlgRSAOAEP
	}
	return o
}

// EncryptDocument cifra la raíz completa del documento.
func EncryptDocument(doc *etree.Document, opts Options) error {
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: documento sin raíz", ErrEncryption)
	}
	return EncryptElement(doc, root, opts)
}

// EncryptElement cifra el elemento dado y lo reemplaza en el documento por el
// bloque EncryptedData (Type=#Element).
func EncryptElement(doc *etree.Document, el *etree.Element, opts Options) error {
	opts = opts.withDefaults()
	if opts.Recipient == nil {
		return fmt.Errorf("%w: falta el certificado del destinatario", ErrEncryption)
	}
	recipientPub, ok := opts.Recipient.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: el certificado del destinatario no es RSA", ErrEncryption)
	}
	keySize, ok := keySizeForContentAlg(opts.ContentAlgorithm)
	if !ok {
		return fmt.Errorf("%w: algoritmo de contenido no soportado: %s", ErrEncryption, opts.ContentAlgorithm)
	}

	plainDoc := etree.NewDocument()
	plainDoc.SetRoot(el.Copy())
	plaintext, err := plainDoc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("%w: serializar elemento: %v", ErrEncryption, err)
	}

	sessionKey := make([]byte, keySize)
	if _, err := rand.Read(sessionKey); err != nil {
		return fmt.Errorf("%w: generar llave de sesión: %v", ErrEncryption, err)
	}
	ciphertext, err := encryptContent(plaintext, sessionKey, opts.ContentAlgorithm)
	if err != nil {
		return err
	}
	wrappedKey, err := wrapKey(sessionKey, recipientPub, opts.KeyTransport)
	if err != nil {
		return err
	}

	encData := buildEncryptedData(opts, ciphertext, wrappedKey)
	if parent := el.Parent(); parent != nil {
		idx := el.Index()
		parent.RemoveChild(el)
		parent.InsertChildAt(idx, encData)
	} else {
		doc.SetRoot(encData)
	}
	return nil
}

func buildEncryptedData(opts Options, ciphertext, wrappedKey []byte) *etree.Element {
	encData := etree.NewElement("xenc:EncryptedData")
	encData.CreateAttr("xmlns:xenc", NamespaceXENC)
	encData.CreateAttr("Type", TypeElement)
	encData.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", opts.ContentAlgorithm)

	keyInfo := encData.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NamespaceDS)
	encKey := keyInfo.CreateElement("xenc:EncryptedKey")
	encKey.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", opts.KeyTransport)
	if opts.RecipientName != "" {
		innerKeyInfo := encKey.CreateElement("ds:KeyInfo")
		innerKeyInfo.CreateElement("ds:KeyName").SetText(opts.RecipientName)
	}
	encKey.CreateElement("xenc:CipherData").
		CreateElement("xenc:CipherValue").
		SetText(base64.StdEncoding.EncodeToString(wrappedKey))

	encData.CreateElement("xenc:CipherData").
		CreateElement("xenc:CipherValue").
		SetText(base64.StdEncoding.EncodeToString(ciphertext))
	return encData
}

// encryptContent cifra con AES-GCM (IV de 12 bytes antepuesto, tag al final)
// o AES-CBC con padding XML-Enc (IV de 16 bytes antepuesto).
func encryptContent(plaintext, key []byte, alg string) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	if isGCM(alg) {
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
		}
		iv := make([]byte, gcm.NonceSize())
		if _, err := rand.Read(iv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
		}
		return gcm.Seal(iv, iv, plaintext, nil), nil
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	padded := padXMLEnc(plaintext, aes.BlockSize)
	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], padded)
	return out, nil
}

func wrapKey(sessionKey []byte, pub *rsa.PublicKey, alg string) ([]byte, error) {
	switch alg {
	case AlgRSAOAEP:
		wrapped, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, sessionKey, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: transporte de llave: %v", ErrEncryption, err)
		}
		return wrapped, nil
	case AlgRSA15:
		wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, sessionKey)
		if err != nil {
			return nil, fmt.Errorf("%w: transporte de llave: %v", ErrEncryption, err)
		}
		return wrapped, nil
	}
	return nil, fmt.Errorf("%w: transporte de llave no soportado: %s", ErrEncryption, alg)
}

// padXMLEnc aplica el padding de XML Encryption: relleno hasta el bloque con
// el último byte indicando la longitud del relleno.
func padXMLEnc(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	padded[len(padded)-1] = byte(padLen)
	return padded
}
