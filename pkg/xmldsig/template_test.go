package xmldsig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/banca-ws/pkg/xmldsig"
)

func TestConstructTemplateDefaults(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)

	sig, err := xmldsig.ConstructTemplate(doc, xmldsig.TemplateOptions{})
	require.NoError(t, err)

	c14n := sig.FindElement("//CanonicalizationMethod")
	require.NotNil(t, c14n)
	assert.Equal(t, xmldsig.AlgExcC14N, c14n.SelectAttrValue("Algorithm", ""))

	sigMethod := sig.FindElement("//SignatureMethod")
	require.NotNil(t, sigMethod)
	assert.Equal(t, xmldsig.AlgRSASHA256, sigMethod.SelectAttrValue("Algorithm", ""))

	ref := sig.FindElement("//Reference")
	require.NotNil(t, ref)
	uri := ref.SelectAttr("URI")
	require.NotNil(t, uri, "la Reference debe llevar URI explícita")
	assert.Equal(t, "", uri.Value, "la Reference cubre el documento completo")

	var transforms []string
	for _, tr := range ref.FindElements("./Transforms/Transform") {
		transforms = append(transforms, tr.SelectAttrValue("Algorithm", ""))
	}
	assert.Equal(t, []string{xmldsig.TransformEnveloped, xmldsig.AlgExcC14N}, transforms)

	digest := sig.FindElement("//DigestMethod")
	require.NotNil(t, digest)
	assert.Equal(t, xmldsig.AlgSHA256, digest.SelectAttrValue("Algorithm", ""))

	assert.NotEmpty(t, sig.SelectAttrValue("Id", ""), "el Id de la firma se genera por defecto")
	assert.NotNil(t, sig.FindElement("//X509Certificate"), "KeyInfo lleva el placeholder del certificado")
}

func TestConstructTemplateRechazaParInconsistente(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)

	// RSA-SHA1 con digest SHA-256: el par debe coincidir.
	_, err = xmldsig.ConstructTemplate(doc, xmldsig.TemplateOptions{
		Algorithm: xmldsig.RSASHA1,
		DigestURI: xmldsig.AlgSHA256,
	})
	require.ErrorIs(t, err, xmldsig.ErrTemplate)
}

func TestConstructTemplateConIssuerSerial(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)

	sig, err := xmldsig.ConstructTemplate(doc, xmldsig.TemplateOptions{
		IssuerSerial: &xmldsig.IssuerSerial{Name: "CN=CA", Serial: "42"},
	})
	require.NoError(t, err)

	issuer := sig.FindElement("//X509IssuerSerial")
	require.NotNil(t, issuer)
	assert.Equal(t, "CN=CA", issuer.FindElement("./X509IssuerName").Text())
	assert.Equal(t, "42", issuer.FindElement("./X509SerialNumber").Text())
}

func TestLocateTemplateSinFirma(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)
	_, err = xmldsig.LocateTemplate(doc)
	require.ErrorIs(t, err, xmldsig.ErrTemplateNotFound)
}

func TestLocateTemplateConFirmasMultiples(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = xmldsig.ConstructTemplate(doc, xmldsig.TemplateOptions{})
		require.NoError(t, err)
	}
	_, err = xmldsig.LocateTemplate(doc)
	require.ErrorIs(t, err, xmldsig.ErrTemplate)
}

func TestLocateTemplateEncuentraLaPlantilla(t *testing.T) {
	doc, err := xmldsig.ReadDocument([]byte(applicationRequestXML))
	require.NoError(t, err)
	built, err := xmldsig.ConstructTemplate(doc, xmldsig.TemplateOptions{SignatureID: "sig-fija"})
	require.NoError(t, err)

	located, err := xmldsig.LocateTemplate(doc)
	require.NoError(t, err)
	assert.Same(t, built, located)
	assert.Equal(t, "sig-fija", located.SelectAttrValue("Id", ""))
}
