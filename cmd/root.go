package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	configs "github.com/thirdweb-dev/extractor/configs"
	"github.com/thirdweb-dev/extractor/internal/env"
	customLogger "github.com/thirdweb-dev/extractor/internal/log"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "extractor",
		Short: "Extract EVM chain data into parquet files",
		Long:  "extractor collects blocks, transactions, logs, traces, state diffs and contract reads from a JSON-RPC node into columnar parquet files",
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("rpc-url", "", "RPC Url to extract from")
	rootCmd.PersistentFlags().Uint64("rpc-chain-id", 0, "Chain id override, fetched from the node when 0")
	rootCmd.PersistentFlags().Int("rpc-max-concurrent-requests", 0, "Max RPC requests in flight, 0 means unbounded")
	rootCmd.PersistentFlags().Int("rpc-max-requests-per-second", 0, "Max RPC requests per second, 0 means unlimited")
	rootCmd.PersistentFlags().Int("rpc-burst", 0, "Token bucket burst for the RPC rate limit")
	rootCmd.PersistentFlags().Int("collect-chunk-size", 1000, "How many units go into one output file")
	rootCmd.PersistentFlags().Int("collect-inner-request-size", 1, "How many blocks one ranged request covers")
	rootCmd.PersistentFlags().Int("collect-max-concurrent-chunks", 4, "How many chunks are collected at once")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().Bool("metrics-enabled", false, "Serve prometheus metrics")
	rootCmd.PersistentFlags().String("metrics-addr", ":2112", "Address of the metrics server")
	rootCmd.PersistentFlags().String("output-dir", ".", "Directory parquet files are written to")
	rootCmd.PersistentFlags().String("output-compression", "zstd", "Parquet compression: zstd, snappy, gzip, lz4 or none")
	rootCmd.PersistentFlags().String("output-s3-bucket", "", "Upload written files to this S3 bucket")
	rootCmd.PersistentFlags().String("output-s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("output-s3-prefix", "", "S3 key prefix")
	rootCmd.PersistentFlags().String("output-s3-endpoint", "", "Custom S3 endpoint")
	viper.BindPFlag("rpc.url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	viper.BindPFlag("rpc.chainId", rootCmd.PersistentFlags().Lookup("rpc-chain-id"))
	viper.BindPFlag("rpc.maxConcurrentRequests", rootCmd.PersistentFlags().Lookup("rpc-max-concurrent-requests"))
	viper.BindPFlag("rpc.maxRequestsPerSecond", rootCmd.PersistentFlags().Lookup("rpc-max-requests-per-second"))
	viper.BindPFlag("rpc.burst", rootCmd.PersistentFlags().Lookup("rpc-burst"))
	viper.BindPFlag("collect.chunkSize", rootCmd.PersistentFlags().Lookup("collect-chunk-size"))
	viper.BindPFlag("collect.innerRequestSize", rootCmd.PersistentFlags().Lookup("collect-inner-request-size"))
	viper.BindPFlag("collect.maxConcurrentChunks", rootCmd.PersistentFlags().Lookup("collect-max-concurrent-chunks"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics-enabled"))
	viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("output.compression", rootCmd.PersistentFlags().Lookup("output-compression"))
	viper.BindPFlag("output.s3.bucket", rootCmd.PersistentFlags().Lookup("output-s3-bucket"))
	viper.BindPFlag("output.s3.region", rootCmd.PersistentFlags().Lookup("output-s3-region"))
	viper.BindPFlag("output.s3.prefix", rootCmd.PersistentFlags().Lookup("output-s3-prefix"))
	viper.BindPFlag("output.s3.endpoint", rootCmd.PersistentFlags().Lookup("output-s3-endpoint"))
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(datasetsCmd)
}

func initConfig() {
	env.Load()
	if err := configs.LoadConfig(cfgFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	customLogger.InitLogger()
}
