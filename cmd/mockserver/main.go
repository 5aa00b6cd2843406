package main

import (
	"flag"

	"go.uber.org/zap"

	"github.com/saker-ai/translate-client/internal/vendormock"
)

func main() {
	addr := flag.String("addr", ":8102", "listen address")
	token := flag.String("token", "", "required bearer token; empty disables the check")
	echo := flag.Bool("echo-audio", true, "echo audio chunks back as synthesized speech")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	router := vendormock.NewRouter(vendormock.Options{
		Token:     *token,
		EchoAudio: *echo,
	}, logger)

	logger.Info("mock streaming-translate endpoint listening", zap.String("addr", *addr))
	if err := router.Run(*addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
