package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediamirror/internal/api"
	"mediamirror/internal/config"
	"mediamirror/internal/dedup"
	"mediamirror/internal/hashing"
	"mediamirror/internal/library"
	"mediamirror/internal/logger"
	"mediamirror/internal/naming"
	"mediamirror/internal/retrieval"
	"mediamirror/pkg/models"
)

func (a *App) fetchCommand() *cobra.Command {
	var (
		directory string
		mode      string
		post      string
	)

	cmd := &cobra.Command{
		Use:   "fetch [sources...]",
		Short: "Retrieve new items for the given or configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			if directory != "" {
				rt.config.Download.Directory = directory
			}
			if mode != "" {
				if !models.ValidMode(mode) {
					return fmt.Errorf("%w: %w: %q", ErrUsage, config.ErrInvalidMode, mode)
				}
				rt.config.Platform.Mode = mode
			}
			if post != "" {
				rt.config.Platform.PostID = post
				if mode == "" {
					rt.config.Platform.Mode = models.ModeSingle
				}
			}

			sources := args
			if len(sources) == 0 {
				sources = rt.config.Platform.Sources
			}
			if len(sources) == 0 {
				return retrieval.ErrNoSources
			}

			orch, err := rt.orchestrator()
			if err != nil {
				return err
			}

			summary, err := orch.RunAll(cmd.Context(), sources)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), summary)
			if code := summaryExitCode(summary); code != ExitSuccess {
				return &ExitError{Code: code, Err: summaryError(summary)}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&directory, "directory", "d", "", "override the download directory")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "listing to walk: normal, timeline, messages, single or collection")
	cmd.Flags().StringVar(&post, "post", "", "post id or URL for single mode (implies --mode single)")
	return cmd
}

func (a *App) sourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			for _, src := range cfg.Platform.Sources {
				fmt.Fprintln(cmd.OutOrStdout(), src)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <source>...",
		Short: "Add sources to the configuration",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, src := range args {
				if _, err := naming.SafeComponent(src); err != nil {
					return fmt.Errorf("%w: %w", ErrUsage, err)
				}
			}
			return a.updateSources(cmd.OutOrStdout(), func(sources []string) []string {
				for _, src := range args {
					if !slices.Contains(sources, src) {
						sources = append(sources, src)
					}
				}
				return sources
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <source>...",
		Short: "Remove sources from the configuration",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.updateSources(cmd.OutOrStdout(), func(sources []string) []string {
				return slices.DeleteFunc(sources, func(src string) bool {
					return slices.Contains(args, src)
				})
			})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

// updateSources rewrites the configured sources and saves the file
func (a *App) updateSources(w io.Writer, edit func([]string) []string) error {
	manager, _, err := a.loadConfig()
	if err != nil {
		return err
	}
	err = manager.Update(func(cfg *models.Config) {
		cfg.Platform.Sources = edit(cfg.Platform.Sources)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	fmt.Fprintf(w, "%d sources configured\n", len(manager.Get().Platform.Sources))
	return nil
}

func printSummary(w io.Writer, s retrieval.Summary) {
	for _, r := range s.Results {
		fmt.Fprintf(w, "%s: %s, %s new (%s), %s duplicates, %s failures\n",
			r.SourceID, r.State,
			humanize.Comma(int64(r.Materialized)), humanize.Bytes(uint64(max(r.Bytes, 0))),
			humanize.Comma(int64(r.Duplicates)),
			humanize.Comma(int64(r.Failures)))
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
		}
	}
	fmt.Fprintln(w, s.String())
}

// summaryExitCode is 0 when every source succeeded, 6 when only some did and
// the code of the first failure when none did
func summaryExitCode(s retrieval.Summary) int {
	switch {
	case s.Aborted > 0:
		return ExitAbort
	case s.Failed == 0:
		return ExitSuccess
	case s.Failed < s.Sources:
		return ExitSomeFailed
	}
	if code := ExitCode(firstFailure(s)); code != ExitSuccess {
		return code
	}
	return ExitUnexpected
}

func firstFailure(s retrieval.Summary) error {
	for _, r := range s.Results {
		if r.State == retrieval.StateFailed || r.State == retrieval.StateAborted {
			if r.Err != nil {
				return r.Err
			}
			return errors.New(r.Error)
		}
	}
	return nil
}

func summaryError(s retrieval.Summary) error {
	if s.Aborted > 0 {
		return fmt.Errorf("aborted: %w", context.Canceled)
	}
	if s.Failed == 1 {
		return firstFailure(s)
	}
	return fmt.Errorf("%d of %d sources failed", s.Failed, s.Sources)
}

func (a *App) hashCommand() *cobra.Command {
	var (
		kindName string
		digest   string
	)

	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the content hash used for deduplication",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			kind := models.KindFromExtension(filepath.Ext(path))
			if kindName != "" {
				if err := kind.UnmarshalText([]byte(kindName)); err != nil || kind == models.KindUnknown {
					return fmt.Errorf("%w: unknown kind %q", ErrUsage, kindName)
				}
			}

			hasher, err := hashing.NewHasher(digest)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}

			hash, err := hasher.Compute(path, kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", hash.Value, hash.Kind, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "", "media kind (image, video, audio); defaults to the file extension")
	cmd.Flags().StringVar(&digest, "digest", models.DigestMD5, "digest for videos and audio (md5 or blake3)")
	return cmd
}

func (a *App) indexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "Rebuild the deduplication index from a source folder and report it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%w: %s is not a directory", ErrUsage, dir)
			}

			layout := retrieval.Layout{SeparatePreviews: true}
			index := dedup.NewIndex(logger.L)
			var total dedup.RehydrateReport
			for _, d := range append([]string{dir}, layout.Dirs(dir)...) {
				report, err := index.RehydrateFromDirectory(d)
				if err != nil {
					return err
				}
				total.Hashes += report.Hashes
				total.Identifiers += report.Identifiers
				total.Skipped += report.Skipped
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "identifiers: %s\n", humanize.Comma(int64(total.Identifiers)))
			fmt.Fprintf(w, "hashes:      %s\n", humanize.Comma(int64(total.Hashes)))
			fmt.Fprintf(w, "skipped:     %s\n", humanize.Comma(int64(total.Skipped)))
			fmt.Fprintf(w, "tracked:     %s\n", humanize.Comma(int64(index.TrackedCount())))
			return nil
		},
	}
}

func (a *App) assembleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assemble <playlist-url> <output>",
		Short: "Download a segmented stream and mux it into one file",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime()
			if err != nil {
				return err
			}

			output := rt.assembler.OutputPath(args[1])
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			out, err := rt.assembler.Assemble(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}

			info, err := os.Stat(out)
			if err != nil {
				return fmt.Errorf("failed to stat output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", out, humanize.Bytes(uint64(info.Size())))
			return nil
		},
	}
}

func (a *App) serveCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run status and the downloaded library over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				rt.config.Server.Port = port
			}

			orch, err := rt.orchestrator()
			if err != nil {
				return err
			}

			server := api.NewServer(rt.config, orch, library.NewManager(rt.layout()), a.version, rt.log)
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.GetActualAddr())

			<-cmd.Context().Done()
			return server.Stop()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured port")
	return cmd
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mediamirror version %s\n", a.version)
		},
	}
}
