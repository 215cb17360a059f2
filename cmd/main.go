package main

import (
	"context"
	"crypto/tls"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"files_connector/config"
	"files_connector/internal/azurefiles"
	"files_connector/internal/blobstore"
	"files_connector/internal/dispatch"
	"files_connector/internal/ftpclient"
	"files_connector/internal/ftps"
	"files_connector/internal/logging"
	"files_connector/internal/manifest"
	"files_connector/internal/server"
	"files_connector/internal/sftpclient"
	"files_connector/internal/transfer"
)

func main() {
	conf, err := config.MustLoad()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(conf.LOG_LEVEL, "files_connector")
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// Клиентский сертификат FTPS необязателен
	var clientCert *tls.Certificate
	if conf.HasClientCertificate() {
		cert, err := ftps.LoadClientCertificate(conf.FTPS_CERT_PATH, conf.FTPS_KEY_PASSWORD)
		if err != nil {
			logger.Fatal().Err(err).Msg("loading FTPS client certificate")
		}
		clientCert = &cert
		logger.Info().Str("subject", cert.Leaf.Subject.CommonName).Msg("FTPS client certificate loaded")
	}

	blobs := blobstore.NewWriter()
	newService := func(m *manifest.Manifest, p transfer.Provider) server.Service {
		id := m.Service().ID
		return server.Service{
			Manifest: m,
			Dispatcher: dispatch.New(dispatch.Options{
				Service:        id,
				Provider:       p,
				Timeout:        conf.OPERATION_TIMEOUT,
				StrictBooleans: conf.STRICT_BOOLEANS,
				Logger:         logging.New(conf.LOG_LEVEL, "dispatch"),
			}),
		}
	}

	srv := server.New(logging.New(conf.LOG_LEVEL, "http"),
		newService(manifest.AzureFiles(), azurefiles.NewProvider(blobs)),
		newService(manifest.FTP(), ftpclient.NewProvider(blobs, clientCert, logging.New(conf.LOG_LEVEL, "ftp"))),
		newService(manifest.SFTP(), sftpclient.NewProvider(blobs, logging.New(conf.LOG_LEVEL, "sftp"))),
	)
	srv.Start(conf.HTTP_PORT)

	logger.Info().
		Int("port", conf.HTTP_PORT).
		Dur("operation_timeout", conf.OPERATION_TIMEOUT).
		Bool("strict_booleans", conf.STRICT_BOOLEANS).
		Msg("files connector started")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		conf.SHUTDOWN_TIMEOUT,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info().Int("exit_code", exitCode).Msg("files connector stopped")
	os.Exit(exitCode)
}
