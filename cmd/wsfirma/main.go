// wsfirma: herramienta de línea de comandos sobre la librería de firma y
// cifrado XML para servicios web bancarios.
//
//	wsfirma sign <request.xml> [salida.xml]
//	wsfirma verify <firmado.xml>
//	wsfirma encrypt <request.xml> [salida.xml]
//	wsfirma decrypt <respuesta.xml> [salida]
//
// El material criptográfico se toma de la configuración (env o .env):
// WS_SIGNING_CERT_PATH, WS_SIGNING_KEY_PATH, WS_BANK_ENCRYPTION_CERT_PATH, etc.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/jhoicas/banca-ws/pkg/config"
	"github.com/jhoicas/banca-ws/pkg/logger"
	"github.com/jhoicas/banca-ws/pkg/xmldsig"
	"github.com/jhoicas/banca-ws/pkg/xmlenc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	command, inPath := os.Args[1], os.Args[2]
	outPath := ""
	if len(os.Args) > 3 {
		outPath = os.Args[3]
	}

	var runErr error
	switch command {
	case "sign":
		runErr = runSign(cfg, log, inPath, outPath)
	case "verify":
		runErr = runVerify(cfg, log, inPath)
	case "encrypt":
		runErr = runEncrypt(cfg, log, inPath, outPath)
	case "decrypt":
		runErr = runDecrypt(cfg, log, inPath, outPath)
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		log.Error().Err(runErr).Str("comando", command).Msg("operación fallida")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "uso: wsfirma <sign|verify|encrypt|decrypt> <archivo.xml> [salida]")
}

func runSign(cfg *config.Config, log zerolog.Logger, inPath, outPath string) error {
	doc, err := xmldsig.ReadDocumentFile(inPath)
	if err != nil {
		return err
	}
	key, err := loadSigningKey(cfg)
	if err != nil {
		return err
	}
	mode := xmldsig.ModeLocate
	if strings.EqualFold(cfg.WS.TemplateMode, "construct") {
		mode = xmldsig.ModeConstruct
	}
	signer := xmldsig.NewSigner(mode, xmldsig.TemplateOptions{
		Algorithm: xmldsig.SignatureAlgorithm(cfg.WS.Algorithm()),
	}).WithLogger(log)
	if err := signer.Sign(doc, key); err != nil {
		return err
	}
	return writeOutput(doc, inPath, outPath, log)
}

func runVerify(cfg *config.Config, log zerolog.Logger, inPath string) error {
	doc, err := xmldsig.ReadDocumentFile(inPath)
	if err != nil {
		return err
	}
	km := xmldsig.NewKeysManager()
	if cfg.WS.BankSigningCertPath == "" {
		return fmt.Errorf("falta WS_BANK_SIGNING_CERT_PATH")
	}
	if err := km.AddPEMFile("bank-signing", cfg.WS.BankSigningCertPath); err != nil {
		return err
	}
	result, err := xmldsig.NewVerifier(km).WithLogger(log).Verify(doc)
	if err != nil {
		return err
	}
	if !result.Valid {
		log.Warn().Str("razon", result.Reason).Msg("firma inválida")
		os.Exit(3)
	}
	log.Info().Str("llave", result.KeyName).Msg("firma válida")
	return nil
}

func runEncrypt(cfg *config.Config, log zerolog.Logger, inPath, outPath string) error {
	doc, err := xmldsig.ReadDocumentFile(inPath)
	if err != nil {
		return err
	}
	if cfg.WS.BankEncryptionCertPath == "" {
		return fmt.Errorf("falta WS_BANK_ENCRYPTION_CERT_PATH")
	}
	cert, err := xmldsig.LoadCertificateFile(cfg.WS.BankEncryptionCertPath)
	if err != nil {
		return err
	}
	if err := xmlenc.EncryptDocument(doc, xmlenc.Options{
		Recipient:     cert,
		RecipientName: "bank-encryption",
	}); err != nil {
		return err
	}
	return writeOutput(doc, inPath, outPath, log)
}

func runDecrypt(cfg *config.Config, log zerolog.Logger, inPath, outPath string) error {
	doc, err := xmldsig.ReadDocumentFile(inPath)
	if err != nil {
		return err
	}
	if cfg.WS.EncryptionKeyPath == "" {
		return fmt.Errorf("falta WS_ENCRYPTION_KEY_PATH")
	}
	key, err := xmldsig.LoadKeyFile(cfg.WS.EncryptionKeyPath, cfg.WS.KeyPassword)
	if err != nil {
		return err
	}
	km := xmldsig.NewKeysManager()
	if err := km.AddSigningKey(key); err != nil {
		return err
	}
	result, err := xmlenc.Decrypt(doc, km)
	if err != nil {
		return err
	}
	if result.Raw != nil {
		if outPath == "" {
			_, err = os.Stdout.Write(result.Raw)
			return err
		}
		return os.WriteFile(outPath, result.Raw, 0o600)
	}
	return writeOutput(doc, inPath, outPath, log)
}

// loadSigningKey carga la llave de firma desde .p12 o par PEM según la
// configuración.
func loadSigningKey(cfg *config.Config) (*xmldsig.SigningKey, error) {
	certPath := cfg.WS.SigningCertPath
	if certPath == "" {
		return nil, fmt.Errorf("falta WS_SIGNING_CERT_PATH")
	}
	if strings.HasSuffix(strings.ToLower(certPath), ".p12") || strings.HasSuffix(strings.ToLower(certPath), ".pfx") {
		return xmldsig.LoadKeyP12File(certPath, cfg.WS.KeyPassword)
	}
	key, err := xmldsig.LoadKeyFile(cfg.WS.SigningKeyPath, cfg.WS.KeyPassword)
	if err != nil {
		return nil, err
	}
	cert, err := xmldsig.LoadCertificateFile(certPath)
	if err != nil {
		return nil, err
	}
	if err := key.AttachCertificate(cert); err != nil {
		return nil, err
	}
	return key, nil
}

func writeOutput(doc *etree.Document, inPath, outPath string, log zerolog.Logger) error {
	data, err := xmldsig.WriteDocument(doc)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = inPath
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return err
	}
	log.Info().Str("archivo", outPath).Msg("documento escrito")
	return nil
}
