package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/docindex/internal/config"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/transport/ipc"
	"github.com/kailas-cloud/docindex/internal/version"
)

const usage = `Usage:
  dclient -a "title" "authors" "year" "path"   index a document
  dclient -c key                               show a document
  dclient -d key                               delete a document
  dclient -l key "keyword"                     count lines containing keyword
  dclient -s "keyword" [workers]               list documents containing keyword
  dclient -f                                   shut the server down
  dclient -version                             print version
`

// doer sends one request and waits for the answer.
type doer interface {
	Do(ctx context.Context, req *ipc.Request) (ipc.Response, error)
}

var errUsage = errors.New("usage")

func main() {
	cfg, err := config.Load(config.GetEnv(), os.Getenv("DOCINDEX_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	cfg.ApplyDefaults()

	client := ipc.NewClient(cfg.IPC.ServerPipe, cfg.IPC.ClientPipeFormat)
	os.Exit(run(context.Background(), os.Args[1:], client, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, c doer, stdout, stderr io.Writer) int {
	if len(args) == 1 && (args[0] == "-version" || args[0] == "--version") {
		fmt.Fprintln(stdout, version.String("dclient"))
		return 0
	}

	req, err := parse(args)
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
		}
		fmt.Fprint(stderr, usage)
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	resp, err := c.Do(ctx, &req)
	if err != nil {
		fmt.Fprintln(stderr, "request failed:", err)
		return 1
	}

	if resp.Status != ipc.StatusOK {
		fmt.Fprintln(stderr, failureMessage(req.Op, resp.Status))
		return 1
	}
	fmt.Fprint(stdout, successMessage(&req, &resp))
	return 0
}

// parse turns the command line into a request. Exactly one operation flag is
// expected; its arguments follow as positionals.
func parse(args []string) (ipc.Request, error) {
	fs := flag.NewFlagSet("dclient", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	add := fs.Bool("a", false, "index a document")
	query := fs.Bool("c", false, "show a document")
	del := fs.Bool("d", false, "delete a document")
	lines := fs.Bool("l", false, "count lines containing keyword")
	search := fs.Bool("s", false, "list documents containing keyword")
	shutdown := fs.Bool("f", false, "shut the server down")
	if err := fs.Parse(args); err != nil {
		return ipc.Request{}, errUsage
	}

	selected := 0
	for _, b := range []bool{*add, *query, *del, *lines, *search, *shutdown} {
		if b {
			selected++
		}
	}
	if selected != 1 {
		return ipc.Request{}, errUsage
	}

	pos := fs.Args()
	switch {
	case *add:
		if len(pos) < 4 {
			return ipc.Request{}, errUsage
		}
		if len(pos[3]) > domdoc.MaxPathSize {
			return ipc.Request{}, fmt.Errorf("path too long (max %d bytes)", domdoc.MaxPathSize)
		}
		return ipc.Request{Op: ipc.OpAdd, Document: domdoc.Reconstruct(0, pos[0], pos[1], pos[2], pos[3])}, nil

	case *query, *del:
		if len(pos) < 1 {
			return ipc.Request{}, errUsage
		}
		id, err := parseID(pos[0])
		if err != nil {
			return ipc.Request{}, err
		}
		op := ipc.OpQuery
		if *del {
			op = ipc.OpDelete
		}
		return ipc.Request{Op: op, Document: domdoc.Reconstruct(id, "", "", "", "")}, nil

	case *lines:
		if len(pos) < 2 {
			return ipc.Request{}, errUsage
		}
		id, err := parseID(pos[0])
		if err != nil {
			return ipc.Request{}, err
		}
		kw, err := keyword(pos[1])
		if err != nil {
			return ipc.Request{}, err
		}
		return ipc.Request{Op: ipc.OpCountLines, Document: domdoc.Reconstruct(id, "", "", "", ""), Keyword: kw}, nil

	case *search:
		if len(pos) < 1 {
			return ipc.Request{}, errUsage
		}
		kw, err := keyword(pos[0])
		if err != nil {
			return ipc.Request{}, err
		}
		workers := 1
		if len(pos) > 1 {
			if n, err := strconv.Atoi(pos[1]); err == nil && n > 0 {
				workers = n
			}
		}
		return ipc.Request{Op: ipc.OpSearch, Keyword: kw, Workers: int32(workers)}, nil

	default:
		return ipc.Request{Op: ipc.OpShutdown}, nil
	}
}

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q", s)
	}
	return int32(id), nil
}

func keyword(s string) (string, error) {
	if len(s) > ipc.KeywordSize {
		return "", fmt.Errorf("keyword too long (max %d bytes)", ipc.KeywordSize)
	}
	return s, nil
}

func successMessage(req *ipc.Request, resp *ipc.Response) string {
	switch req.Op {
	case ipc.OpAdd:
		return fmt.Sprintf("Document %d indexed\n", resp.Document.ID())
	case ipc.OpQuery:
		d := resp.Document
		return fmt.Sprintf("Title: %s\nAuthors: %s\nYear: %s\nPath: %s\n", d.Title(), d.Authors(), d.Year(), d.Path())
	case ipc.OpDelete:
		return fmt.Sprintf("Index entry %d deleted\n", req.Document.ID())
	case ipc.OpCountLines:
		return fmt.Sprintf("%d\n", resp.Count)
	case ipc.OpSearch:
		ids := make([]string, len(resp.IDs))
		for i, id := range resp.IDs {
			ids[i] = strconv.Itoa(int(id))
		}
		return "[" + strings.Join(ids, ", ") + "]\n"
	default:
		return "Server is shutting down\n"
	}
}

func failureMessage(op ipc.Op, status ipc.Status) string {
	switch status {
	case ipc.StatusNotFound:
		if op == ipc.OpCountLines {
			return "Failed to count lines: document not found or unreadable"
		}
		return "Document not found"
	case ipc.StatusPathUnreadable:
		return "Failed to index document: file cannot be read"
	case ipc.StatusPathTooLong:
		return "Failed to index document: path too long"
	case ipc.StatusResourceExhausted:
		return "Failed to index document: no ids left"
	case ipc.StatusInvalidOperation:
		return "Invalid operation"
	default:
		return fmt.Sprintf("Request failed with status %d", status)
	}
}
