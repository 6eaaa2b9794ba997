package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/edaloom/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set edaloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "host: %s\n", cfg.Host)
		fmt.Fprintf(out, "port: %d\n", cfg.Port)
		fmt.Fprintf(out, "upload_dir: %s\n", cfg.UploadDir)
		fmt.Fprintf(out, "plot_dir: %s\n", cfg.PlotDir)
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "keep_reports: %d\n", cfg.KeepReports)
		fmt.Fprintf(out, "request_timeout_sec: %d\n", cfg.RequestTimeoutSec)
		if cfg.MaxRows > 0 {
			fmt.Fprintf(out, "max_rows: %d\n", cfg.MaxRows)
		}
		fmt.Fprintf(out, "categorical_max_distinct: %d\n", cfg.CategoricalMaxDistinct)
		fmt.Fprintf(out, "binary_max_distinct: %d\n", cfg.BinaryMaxDistinct)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(out, "metrics_enabled: %t\n", cfg.MetricsEnabled)
		if len(cfg.CORSOrigins) > 0 {
			fmt.Fprintf(out, "cors_origins: %s\n", strings.Join(cfg.CORSOrigins, ","))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setKey(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "host":
		c.Host = val
	case "port":
		c.Port, err = atoi()
	case "upload_dir":
		c.UploadDir = val
	case "plot_dir":
		c.PlotDir = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "keep_reports":
		c.KeepReports, err = atoi()
	case "request_timeout_sec":
		c.RequestTimeoutSec, err = atoi()
	case "max_rows":
		c.MaxRows, err = atoi()
	case "categorical_max_distinct":
		c.CategoricalMaxDistinct, err = atoi()
	case "binary_max_distinct":
		c.BinaryMaxDistinct, err = atoi()
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	case "metrics_enabled":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for metrics_enabled: %v", val)
		}
		c.MetricsEnabled = b
	case "cors_origins":
		c.CORSOrigins = nil
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
