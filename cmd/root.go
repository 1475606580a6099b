/*
Copyright © 2025 Vitalii Kuzmyk <vitalii.kuzmyk@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vkuzmyk/mdlate/internal/chunker"
	"github.com/vkuzmyk/mdlate/internal/document"
	"github.com/vkuzmyk/mdlate/internal/orchestrator"
	"github.com/vkuzmyk/mdlate/internal/reassembler"
)

var version = "0.3.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mdlate",
	Short: "Context-aware Markdown document translator",
	Long: `mdlate translates Markdown documents with an LLM while preserving their
structure. Documents are split into chunks along block boundaries; each
chunk is translated with a rolling summary, a terminology glossary, and the
tail of the previous translation threaded through, so long documents stay
consistent end to end.

Supported providers: openai, qwen, openrouter, ollama, google

Use "mdlate translate --help" for translation options.`,
	Version: version,
}

// Execute runs the root command and exits with a code that identifies the
// failing pipeline stage: 2 parse, 3 chunking, 4 translation, 5 reassembly,
// 1 anything else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var parseErr *document.ParseError
	var chunkErr *chunker.ChunkingError
	var translateErr *orchestrator.TranslationError
	var reassemblyErr *reassembler.ReassemblyError
	switch {
	case errors.As(err, &parseErr):
		return 2
	case errors.As(err, &chunkErr):
		return 3
	case errors.As(err, &translateErr):
		return 4
	case errors.As(err, &reassemblyErr):
		return 5
	}
	return 1
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.mdlate.yaml)")
}

// initConfig loads the config file and environment. Flags take precedence
// over both; environment variables use the MDLATE_ prefix (MDLATE_API_KEY,
// MDLATE_DB, ...).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".mdlate")
		}
	}

	viper.SetEnvPrefix("MDLATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
