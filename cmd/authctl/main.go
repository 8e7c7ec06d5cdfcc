package main

import (
	"os"

	"github.com/sandeepkv93/ai-saas-backend/internal/tools/authctl"
	"github.com/sandeepkv93/ai-saas-backend/internal/tools/common"
)

func main() {
	_ = common.LoadEnvFile(".env")
	if err := authctl.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
