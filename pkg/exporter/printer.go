package exporter

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"pocket/pkg/core"
	"pocket/pkg/types"
)

// PrintObject 解析并打印对象 (Shove / Tree / FileNode / Blob)
func (e *Exporter) PrintObject(ctx context.Context, id types.Hash, w io.Writer) error {
	data, err := e.store.Raw(ctx, id)
	if err != nil {
		return err
	}

	switch core.SniffType(data) {
	case core.TypeShove:
		return printShove(data, w)
	case core.TypeTree:
		return printTree(data, w)
	case core.TypeFileNode:
		return printFileNode(data, w)
	default:
		fmt.Fprintf(w, "Type: Blob\nSize: %s\n\n", fmtSize(int64(len(data))))
		if isBinary(data) {
			fmt.Fprintf(w, "(binary data not shown, use 'pocket cat --raw ... > file' to save)\n")
			return nil
		}
		_, err := w.Write(data)
		return err
	}
}

// --- 辅助打印函数 ---

func printShove(data []byte, w io.Writer) error {
	s, err := core.DecodeShove(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Type:    Shove\n")
	fmt.Fprintf(w, "Hash:    %s\n", s.ID())
	fmt.Fprintf(w, "Tree:    %s\n", s.TreeCid)
	for _, p := range s.Parents {
		fmt.Fprintf(w, "Parent:  %s\n", p)
	}
	fmt.Fprintf(w, "Author:  %s\n", s.Author)
	fmt.Fprintf(w, "Time:    %s\n", time.Unix(s.Timestamp, 0).Format(time.RFC3339))
	fmt.Fprintf(w, "\n%s\n", s.Message)
	return nil
}

func printTree(data []byte, w io.Writer) error {
	t, err := core.DecodeTree(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Type: Tree\n\n")
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tHASH\tSIZE\tNAME\n")
	for _, entry := range t.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.Type, entry.Cid.Hash.Short(), fmtSize(entry.Size), entry.Name)
	}
	return tw.Flush()
}

func printFileNode(data []byte, w io.Writer) error {
	f, err := core.DecodeFileNode(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Type:      FileNode\n")
	fmt.Fprintf(w, "TotalSize: %s\n", fmtSize(f.TotalSize))
	fmt.Fprintf(w, "Chunks:    %d\n\n", len(f.Chunks))
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for i, c := range f.Chunks {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, c.Cid, fmtSize(c.Size))
	}
	return tw.Flush()
}

func fmtSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}

// isBinary 前 8000 字节中出现 NUL 视为二进制
func isBinary(data []byte) bool {
	n := min(len(data), 8000)
	for _, b := range data[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
