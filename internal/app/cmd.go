package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// runners はサブコマンドの実処理。テストで差し替えられる。
type runners struct {
	serve       func(w io.Writer) error
	migrate     func(w io.Writer) error
	healthcheck func(port string) error
}

func defaultRunners() runners {
	return runners{
		serve:       serveFromEnv,
		migrate:     migrateFromEnv,
		healthcheck: runHealthcheck,
	}
}

// NewRootCommand はbffのルートコマンドを生成する。
// サブコマンドなしで起動した場合はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	return newRootCommand(w, defaultRunners())
}

func newRootCommand(w io.Writer, rn runners) *cobra.Command {
	root := &cobra.Command{
		Use:           "bff",
		Short:         "Lean Stack BFF API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rn.serve(w)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "HTTPサーバーを起動する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rn.serve(w)
			},
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "未適用のマイグレーションをすべて適用する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rn.migrate(w)
			},
		},
		newHealthcheckCommand(rn),
	)

	return root
}

// newHealthcheckCommand は軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCommand(rn runners) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "起動中のサーバーの/healthを確認する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rn.healthcheck(port)
		},
	}

	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "確認対象のポート")
	return cmd
}
