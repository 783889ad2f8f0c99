package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	indexDir  string
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "faceprints",
	Short: "A local face index that classifies faces by label centroids",
	Long: `Faceprints keeps a directory of labeled face embeddings. Every label owns
its samples and a centroid (the mean of the samples); a face is classified by
ranking the labels by cosine similarity between its embedding and each centroid.

Face detection and embedding run on an external embedding server
(EMBEDDING_URL). Raw embeddings can be passed with --embedding instead.

Running "faceprints <image>" is the same as "faceprints classify <image>".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.SetArgs(withDefaultCommand(rootCmd, os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&indexDir, "dir", "", "Index directory (default $FACEPRINTS_DIR or ~/.faceprints)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// withDefaultCommand routes "faceprints <image>" to the classify command.
// Leading flags (and the values of flags that take one) are skipped; the
// arguments are left alone when the first positional names a known command
// or when only root flags are given.
func withDefaultCommand(root *cobra.Command, args []string) []string {
	classifyFlag := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			if i+1 < len(args) {
				return prependClassify(args)
			}
			return args
		case arg == "--help" || arg == "-h":
			return args
		case len(arg) > 1 && arg[0] == '-':
			flag, local := lookupLeadingFlag(root, arg)
			if flag == nil {
				// unknown flag, let cobra report it
				return args
			}
			classifyFlag = classifyFlag || local
			if flag.NoOptDefVal == "" && !strings.Contains(arg, "=") && !hasAttachedShorthandValue(arg) {
				i++
			}
		default:
			if isCommandName(root, arg) {
				return args
			}
			return prependClassify(args)
		}
	}
	if classifyFlag {
		return prependClassify(args)
	}
	return args
}

// lookupLeadingFlag finds arg among the root persistent flags, then among the
// classify flags. local reports a classify-only flag.
func lookupLeadingFlag(root *cobra.Command, arg string) (flag *pflag.Flag, local bool) {
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		name, _, _ = strings.Cut(name, "=")
		if f := root.PersistentFlags().Lookup(name); f != nil {
			return f, false
		}
		if f := classifyCmd.Flags().Lookup(name); f != nil {
			return f, true
		}
		return nil, false
	}

	short := arg[1:2]
	if f := root.PersistentFlags().ShorthandLookup(short); f != nil {
		return f, false
	}
	if f := classifyCmd.Flags().ShorthandLookup(short); f != nil {
		return f, true
	}
	return nil, false
}

// hasAttachedShorthandValue reports "-xVALUE" style shorthand arguments
func hasAttachedShorthandValue(arg string) bool {
	return !strings.HasPrefix(arg, "--") && len(arg) > 2
}

func isCommandName(root *cobra.Command, name string) bool {
	if name == "help" || name == "completion" || name == cobra.ShellCompRequestCmd || name == cobra.ShellCompNoDescRequestCmd {
		return true
	}
	for _, c := range root.Commands() {
		if c.Name() == name || slices.Contains(c.Aliases, name) {
			return true
		}
	}
	return false
}

func prependClassify(args []string) []string {
	return append([]string{classifyCmd.Name()}, args...)
}
