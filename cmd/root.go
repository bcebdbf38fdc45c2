// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.
package cmd

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version of this software - filled in by ldflags in Makefile.
	Version string
	// BuildTime of this software - filled in by ldflags in Makefile.
	BuildTime string
)

// envPrefix prefixes the environment variable of every flag, so that
// --pipeline-name may also be given as MDK_PIPELINE_NAME.
const envPrefix = "MDK"

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand returns the mdk command with every registered subcommand, in
// name order.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:     "mdk",
		Short:   "mdk - metadata ingestion kit",
		Version: versionString(),
		Long: `Runs metadata ingestion recipes: work units are pulled from a
source, post-processed and written to a sink. Every flag may also be set in
the environment (MDK_<FLAG>) or in a TOML or YAML file named by --config.
Flags win over the environment, which wins over the file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfig(viper.New(), cmd.Flags(), envPrefix)
		},
	}
	rc.PersistentFlags().String("config", "", "TOML or YAML file to read flag values from.")
	names := make([]string, 0, len(subcommandFns))
	for name := range subcommandFns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rc.AddCommand(subcommandFns[name](stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

func versionString() string {
	v, bt := Version, BuildTime
	if v == "" {
		v = "v0.0.0"
	}
	if bt == "" {
		bt = "not recorded"
	}
	return v + " (built " + bt + ")"
}

// envKey is the environment variable consulted for flag.
func envKey(prefix, flag string) string {
	return strings.ToUpper(prefix + "_" + strings.Replace(flag, "-", "_", -1))
}

// applyConfig fills every flag of flags which was not given on the command
// line from the environment, or else from the config file, leaving the
// default when neither has it.
func applyConfig(v *viper.Viper, flags *pflag.FlagSet, prefix string) error {
	path, ok := os.LookupEnv(envKey(prefix, "config"))
	if f := flags.Lookup("config"); f != nil && f.Changed {
		path, ok = f.Value.String(), true
	}
	if ok && path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "yaml" && ext != "yml" {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading configuration file '%s'", path)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed || f.Name == "config" {
			return
		}
		value, ok := os.LookupEnv(envKey(prefix, f.Name))
		if !ok {
			if !v.InConfig(f.Name) {
				return
			}
			value = configValue(v, f)
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = errors.Wrapf(err, "setting %s", f.Name)
		}
	})
	return flagErr
}

// configValue renders the config file value of f the way it would be given
// on the command line. Lists in the file become comma separated.
func configValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return v.GetString(f.Name)
}
