package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pocket/pkg/app"
	"pocket/pkg/errs"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose bool
	// 全局仓库实例，供子命令使用
	Repo *app.Repository
	// v 绑定了全局 flags 的配置实例
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "pocket",
	Short:         "Pocket: local version control with piles, shoves and timelines",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// new-repo 负责创建仓库，不需要打开
		if cmd.Name() == "new-repo" || cmd.Name() == "help" {
			return nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		Repo, err = app.Open(cmd.Context(), wd, app.Options{Viper: v, Verbose: verbose})
		if err != nil {
			return fmt.Errorf("failed to open repository: %w\n(Did you run 'pocket new-repo'?)", err)
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:])
}

// ExecuteContext 以给定参数执行一次命令，结束时关闭仓库
func ExecuteContext(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if Repo != nil {
		if cerr := Repo.Close(); cerr != nil && err == nil {
			err = cerr
		}
		Repo = nil
	}
	return err
}

// ExitCode 按错误类别返回进程退出码
func ExitCode(err error) int {
	switch errs.Kind(err) {
	case errs.ErrConflict:
		return 2
	case errs.ErrNotFound:
		return 3
	case errs.ErrInvalidState:
		return 4
	case errs.ErrCorruption:
		return 5
	default:
		return 1
	}
}

// FormatError 渲染给用户看的错误
func FormatError(err error) string {
	var conflict *errs.ConflictError
	if errors.As(err, &conflict) {
		return colorYellow("⚠️  " + err.Error())
	}
	return colorRed("❌ " + err.Error())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also write logs to stderr")

	// 可以在 config.yaml 里写，也可以用 flag 覆盖
	rootCmd.PersistentFlags().Duration("lock-timeout", 0, "How long to wait for the repository lock")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	for key, flag := range map[string]string{"lock.timeout": "lock-timeout", "log.level": "log-level"} {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}
