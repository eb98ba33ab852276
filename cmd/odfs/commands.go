package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/marmos91/onedrivefs/pkg/config"
	"github.com/spf13/pflag"
)

// command is one odfs subcommand.
type command struct {
	name    string
	usage   string
	summary string

	minArgs int
	maxArgs int

	// offline commands run without a filesystem
	offline bool

	flags func(*pflag.FlagSet, *commandOptions)
	run   func(ctx context.Context, env *environment, args []string) error
}

// commandOptions holds the flags of every command; each command declares the
// ones it uses.
type commandOptions struct {
	long      bool
	parents   bool
	recursive bool
	force     bool
}

var commands = []command{
	{
		name: "ls", usage: "[-l] [path]", summary: "list a folder",
		maxArgs: 1,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.long, "long", "l", false, "show type, size and modification time")
		},
		run: runList,
	},
	{
		name: "stat", usage: "<path>", summary: "show file or folder details",
		minArgs: 1, maxArgs: 1,
		run: runStat,
	},
	{
		name: "cat", usage: "<path>", summary: "write a file to standard output",
		minArgs: 1, maxArgs: 1,
		run: runCat,
	},
	{
		name: "get", usage: "<path> [local]", summary: "download a file (local \"-\" is standard output)",
		minArgs: 1, maxArgs: 2,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.force, "force", "f", false, "overwrite an existing local file")
		},
		run: runGet,
	},
	{
		name: "put", usage: "<local> <path>", summary: "upload a file (local \"-\" is standard input)",
		minArgs: 2, maxArgs: 2,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.force, "force", "f", false, "replace an existing remote file")
		},
		run: runPut,
	},
	{
		name: "append", usage: "<local> <path>", summary: "append a local file to a remote file",
		minArgs: 2, maxArgs: 2,
		run: runAppend,
	},
	{
		name: "mkdir", usage: "[-p] <path>", summary: "create a folder",
		minArgs: 1, maxArgs: 1,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.parents, "parents", "p", false, "create missing parents, no error if the folder exists")
		},
		run: runMkdir,
	},
	{
		name: "rm", usage: "[-r] <path>", summary: "remove a file, or a folder tree with -r",
		minArgs: 1, maxArgs: 1,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.recursive, "recursive", "r", false, "remove a folder and everything below it")
		},
		run: runRemove,
	},
	{
		name: "rmdir", usage: "<path>", summary: "remove an empty folder",
		minArgs: 1, maxArgs: 1,
		run: runRmdir,
	},
	{
		name: "cp", usage: "[-f] <src> <dst>", summary: "copy a file on the drive",
		minArgs: 2, maxArgs: 2,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.force, "force", "f", false, "replace an existing destination")
		},
		run: runCopy,
	},
	{
		name: "init", usage: "[--force]", summary: "write a default configuration file",
		offline: true,
		flags: func(f *pflag.FlagSet, o *commandOptions) {
			f.BoolVarP(&o.force, "force", "f", false, "overwrite an existing configuration file")
		},
		run: runInit,
	},
}

func runList(ctx context.Context, env *environment, args []string) error {
	dir := "/"
	if len(args) == 1 {
		dir = args[0]
	}

	if !env.opts.long {
		names, err := env.fs.ListDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(env.stdout, name)
		}
		return nil
	}

	infos, err := env.fs.ScanDir(ctx, dir, nil)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, info := range infos {
		kind := "-"
		if info.IsDir {
			kind = "d"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n", kind, info.Size, info.Modified.UTC().Format(time.RFC3339), info.Name)
	}
	return w.Flush()
}

func runStat(ctx context.Context, env *environment, args []string) error {
	info, err := env.fs.GetInfo(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(env.stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "name:\t%s\n", info.Name)
	fmt.Fprintf(w, "type:\t%s\n", info.Type())
	fmt.Fprintf(w, "size:\t%d\n", info.Size)
	fmt.Fprintf(w, "id:\t%s\n", info.ItemID)
	fmt.Fprintf(w, "created:\t%s\n", info.Created.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "modified:\t%s\n", info.Modified.UTC().Format(time.RFC3339))
	if info.MimeType != "" {
		fmt.Fprintf(w, "mime:\t%s\n", info.MimeType)
	}
	for _, name := range slices.Sorted(maps.Keys(info.Hashes)) {
		fmt.Fprintf(w, "%s:\t%s\n", name, info.Hashes[name])
	}
	return w.Flush()
}

func runCat(ctx context.Context, env *environment, args []string) error {
	return download(ctx, env, args[0], env.stdout)
}

func runGet(ctx context.Context, env *environment, args []string) error {
	local := path.Base(args[0])
	if len(args) == 2 {
		local = args[1]
	}
	if local == "-" {
		return download(ctx, env, args[0], env.stdout)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !env.opts.force {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(local, flags, 0644)
	if err != nil {
		return err
	}
	if err := download(ctx, env, args[0], out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// download copies the remote file p to w.
func download(ctx context.Context, env *environment, p string, w io.Writer) error {
	f, err := env.fs.Open(ctx, p, "rb")
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = f.CloseContext(ctx)
		return err
	}
	return f.CloseContext(ctx)
}

func runPut(ctx context.Context, env *environment, args []string) error {
	mode := "xb"
	if env.opts.force {
		mode = "wb"
	}
	return upload(ctx, env, args[0], args[1], mode)
}

func runAppend(ctx context.Context, env *environment, args []string) error {
	return upload(ctx, env, args[0], args[1], "ab")
}

// upload sends the local file (or standard input for "-") to the remote
// path p opened with mode.
func upload(ctx context.Context, env *environment, local, p, mode string) error {
	var in io.Reader = env.stdin
	if local != "-" {
		file, err := os.Open(local)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		in = file
	}

	f, err := env.fs.Open(ctx, p, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		_ = f.CloseContext(ctx)
		return err
	}
	// Close commits the buffered content
	return f.CloseContext(ctx)
}

func runMkdir(ctx context.Context, env *environment, args []string) error {
	var err error
	if env.opts.parents {
		_, err = env.fs.MakeDirs(ctx, args[0], true)
	} else {
		_, err = env.fs.MakeDir(ctx, args[0], false)
	}
	return err
}

func runRemove(ctx context.Context, env *environment, args []string) error {
	if env.opts.recursive {
		return env.fs.RemoveTree(ctx, args[0])
	}
	return env.fs.Remove(ctx, args[0])
}

func runRmdir(ctx context.Context, env *environment, args []string) error {
	return env.fs.RemoveDir(ctx, args[0])
}

func runCopy(ctx context.Context, env *environment, args []string) error {
	return env.fs.Copy(ctx, args[0], args[1], env.opts.force)
}

func runInit(_ context.Context, env *environment, _ []string) error {
	p := env.configPath
	if p == "" {
		p = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(p, env.opts.force); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Configuration written to %s\n", p)
	return nil
}
