package main

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wormhole-foundation/hello-executor-client/pkg/attestation"
	"github.com/wormhole-foundation/hello-executor-client/pkg/common"
	"github.com/wormhole-foundation/hello-executor-client/pkg/executor"
	"github.com/wormhole-foundation/hello-executor-client/pkg/helloexec"
	"github.com/wormhole-foundation/hello-executor-client/pkg/relay"
	"github.com/wormhole-foundation/hello-executor-client/pkg/svm"
	"github.com/wormhole-foundation/hello-executor-client/pkg/version"
)

var (
	cfgFile  string
	logLevel string

	env       string
	solanaRPC string
	solanaWS  string
	solanaKey string

	programAddress    string
	coreBridgeAddress string

	executorURL     string
	wormholescanURL string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "helloexec",
	Short: "Cross-chain greeting client for the Wormhole Executor",
}

// Top-level version subcommand
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display binary version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	addNetworkFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(peerCmd)
	rootCmd.AddCommand(sequenceCmd)
	rootCmd.AddCommand(initializeCmd)
	rootCmd.AddCommand(updateConfigCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func addNetworkFlags(pf *pflag.FlagSet) {
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.helloexec.yaml)")
	pf.StringVar(&logLevel, "logLevel", "info", "Logging level (debug, info, warn, error)")
	pf.StringVar(&env, "env", "test", "Environment (prod, test, dev)")
	pf.StringVar(&solanaRPC, "solanaRPC", "https://api.devnet.solana.com", "Solana RPC URL")
	pf.StringVar(&solanaWS, "solanaWS", "wss://api.devnet.solana.com", "Solana websocket URL")
	pf.StringVar(&solanaKey, "solanaKey", "", "Path to the Solana signing key (solana-keygen format)")
	pf.StringVar(&programAddress, "program", "", "Greeting program address")
	pf.StringVar(&coreBridgeAddress, "coreBridge", "", "Core bridge program address (defaults per environment)")
	pf.StringVar(&executorURL, "executorURL", "", "Executor API base URL (defaults per environment)")
	pf.StringVar(&wormholescanURL, "wormholescanURL", "", "Attestation index base URL (defaults per environment)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".helloexec.yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() *zap.Logger {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		fmt.Printf("invalid log level %q: %v\n", logLevel, err)
		os.Exit(1)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		fmt.Printf("failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func environment() common.Environment {
	e, err := common.ParseEnvironment(env)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return e
}

// Core bridge deployments per environment.
const (
	mainnetCoreBridge = "worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth"
	testnetCoreBridge = "3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5"
)

const (
	mainnetExecutorAPI = "https://executor.labsapis.com"
	testnetExecutorAPI = "https://executor-testnet.labsapis.com"
)

func coreBridgeKey(e common.Environment) (solana.PublicKey, error) {
	addr := coreBridgeAddress
	if addr == "" {
		switch e {
		case common.MainNet:
			addr = mainnetCoreBridge
		default:
			addr = testnetCoreBridge
		}
	}
	return solana.PublicKeyFromBase58(addr)
}

func executorBaseURL(e common.Environment) string {
	if executorURL != "" {
		return executorURL
	}
	if e == common.MainNet {
		return mainnetExecutorAPI
	}
	return testnetExecutorAPI
}

func newProgram(e common.Environment) (*helloexec.Program, error) {
	if programAddress == "" {
		return nil, fmt.Errorf("--program is required")
	}
	programID, err := solana.PublicKeyFromBase58(programAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid program address: %w", err)
	}
	coreBridge, err := coreBridgeKey(e)
	if err != nil {
		return nil, fmt.Errorf("invalid core bridge address: %w", err)
	}
	return helloexec.NewProgram(programID, coreBridge)
}

func newSVMClient(logger *zap.Logger) (*svm.Client, error) {
	e := environment()
	program, err := newProgram(e)
	if err != nil {
		return nil, err
	}
	if solanaKey == "" {
		return nil, fmt.Errorf("--solanaKey is required")
	}
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(solanaKey)
	if err != nil {
		return nil, fmt.Errorf("load solana key: %w", err)
	}
	return svm.NewClient(solanaRPC, solanaWS, program, signer, logger), nil
}

func newAttestationClient(logger *zap.Logger) *attestation.Client {
	if wormholescanURL != "" {
		return attestation.NewClientWithURL(wormholescanURL, logger)
	}
	return attestation.NewClient(environment(), logger)
}

// newPipeline wires every stage. The manual-delivery stage is attached by
// the callers that need it; most do not.
func newPipeline(cmd *cobra.Command, logger *zap.Logger, chain *svm.Client, manual relay.ManualDeliverer) (*relay.Pipeline, error) {
	e := environment()
	config, err := chain.Config(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("read program config: %w", err)
	}
	return &relay.Pipeline{
		SrcChain:     vaa.ChainID(config.ChainID),
		Emitter:      chain.Program.EmitterUniversal(),
		Publisher:    chain,
		Quoter:       executor.NewQuoteClient(executorBaseURL(e), logger),
		Attestations: newAttestationClient(logger),
		Status:       executor.NewStatusClient(executorBaseURL(e), e, logger),
		Manual:       manual,
		Logger:       logger.With(zap.String("component", "RelayPipeline")),
	}, nil
}
