package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes inspection results to w in the given format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats results as aligned text
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	switch {
	case response.Superblock != nil:
		writeSuperblock(w, response.Superblock)
	case response.Checkpoint != nil:
		writeCheckpoint(w, response.Checkpoint)
	case response.NAT != nil:
		writeNAT(w, response.NAT)
	default:
		writeFiles(w, response)
	}

	return w.Flush()
}

func writeSuperblock(w io.Writer, sb *SuperblockReport) {
	fmt.Fprintf(w, "Superblock copy:\t%d\n", sb.Copy)
	fmt.Fprintf(w, "UUID:\t%s\n", sb.UUID)
	fmt.Fprintf(w, "Volume name:\t%s\n", sb.VolumeName)
	fmt.Fprintf(w, "Version:\t%s\n", sb.Version)
	fmt.Fprintf(w, "Kernel version:\t%s\n", sb.KernelVersion)
	fmt.Fprintf(w, "Init version:\t%s\n", sb.InitVersion)
	fmt.Fprintf(w, "Features:\t%s\n", joinOrNone(sb.Features))
	fmt.Fprintf(w, "Extensions:\t%s\n", joinOrNone(sb.Extensions))
	fmt.Fprintf(w, "Block count:\t%d\n", sb.BlockCount)
	fmt.Fprintf(w, "Blocks per segment:\t%d\n", sb.BlocksPerSegment)
	fmt.Fprintf(w, "Segments per section:\t%d\n", sb.SegmentsPerSec)
	fmt.Fprintf(w, "Sections per zone:\t%d\n", sb.SectionsPerZone)
	fmt.Fprintf(w, "Segment count:\t%d\n", sb.SegmentCount)
	fmt.Fprintf(w, "CP payload:\t%d\n", sb.CPPayload)
	fmt.Fprintf(w, "Root / node / meta ino:\t%d / %d / %d\n", sb.RootIno, sb.NodeIno, sb.MetaIno)

	fmt.Fprintf(w, "\nAREA\tSTART\tSEGMENTS\n")
	for _, area := range sb.Areas {
		fmt.Fprintf(w, "%s\t%d\t%d\n", area.Name, area.StartBlk, area.Segments)
	}
}

func writeCheckpoint(w io.Writer, cp *CheckpointReport) {
	fmt.Fprintf(w, "Pack:\t%d (block %d)\n", cp.Pack, cp.PackStart)
	fmt.Fprintf(w, "Version:\t%d\n", cp.Version)
	fmt.Fprintf(w, "Flags:\t%s\n", joinOrNone(cp.Flags))
	fmt.Fprintf(w, "Checksum:\t%s\n", cp.Checksum)
	fmt.Fprintf(w, "Pack blocks:\t%d\n", cp.PackTotalBlockCount)
	fmt.Fprintf(w, "User blocks:\t%d\n", cp.UserBlockCount)
	fmt.Fprintf(w, "Valid blocks:\t%d\n", cp.ValidBlockCount)
	fmt.Fprintf(w, "Reserved segments:\t%d\n", cp.RsvdSegmentCount)
	fmt.Fprintf(w, "Overprovision segments:\t%d\n", cp.OverprovSegCount)
	fmt.Fprintf(w, "Free segments:\t%d\n", cp.FreeSegmentCount)
	fmt.Fprintf(w, "Valid nodes:\t%d\n", cp.ValidNodeCount)
	fmt.Fprintf(w, "Valid inodes:\t%d\n", cp.ValidInodeCount)
	fmt.Fprintf(w, "Next free nid:\t%d\n", cp.NextFreeNID)

	fmt.Fprintf(w, "\nLOG\tSEGNO\tBLKOFF\n")
	for _, seg := range cp.CurSegments {
		fmt.Fprintf(w, "%s\t%d\t%d\n", seg.Log, seg.Segno, seg.Blkoff)
	}
}

func writeNAT(w io.Writer, nat *NATReport) {
	fmt.Fprintf(w, "Base address:\t%d\n", nat.BaseAddr)
	fmt.Fprintf(w, "Blocks:\t%d\n", nat.Blocks)
	fmt.Fprintf(w, "Entries per block:\t%d\n", nat.EntriesPerBlock)
	fmt.Fprintf(w, "Max nid:\t%d\n", nat.MaxNID)
	fmt.Fprintf(w, "Alternate blocks:\t%d\n", nat.AlternateBlocks)
	if nat.NATBitsValid {
		fmt.Fprintf(w, "nat_bits:\tfull %d, empty %d\n", nat.FullBlocks, nat.EmptyBlocks)
	} else {
		fmt.Fprintf(w, "nat_bits:\tnot present\n")
	}

	if len(nat.Resolved) == 0 {
		return
	}
	fmt.Fprintf(w, "\nNID\tNAT BLOCK\tSLOT\tNAT ADDR\tCOPY\tINO\tBLOCK ADDR\tVERSION\n")
	for _, r := range nat.Resolved {
		copyName := "primary"
		if r.Alternate {
			copyName = "alternate"
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%d\t%d\t%d\n",
			r.NID, r.NATBlock, r.Slot, r.NATBlockAddr, copyName, r.Ino, r.BlockAddr, r.Version)
	}
}

func writeFiles(w io.Writer, response *Response) {
	if len(response.Files) == 0 {
		fmt.Fprintln(w, "Directory is empty.")
		return
	}

	fmt.Fprintf(w, "MODE\tLINKS\tUID\tGID\tSIZE\tMODIFIED\tINODE\tPATH\n")
	for _, file := range response.Files {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t%d\t%s\n",
			file.Permissions, file.Links, file.UID, file.GID, file.FormatSize(),
			file.Modified.Format("2006-01-02 15:04"), file.Inode, file.Path)
	}

	if response.Truncated {
		fmt.Fprintf(w, "\n(showing first %d entries)\n", len(response.Files))
	}
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// FormatSummary provides a brief summary for verbose output
func FormatSummary(response *Response) string {
	switch response.Kind {
	case KindList, KindStat:
		summary := fmt.Sprintf("%d entr", response.TotalFound)
		if response.TotalFound == 1 {
			summary += "y"
		} else {
			summary += "ies"
		}
		if response.Truncated {
			summary += " (truncated)"
		}
		return fmt.Sprintf("%s in %v", summary, response.ElapsedTime)
	default:
		return fmt.Sprintf("%s of %s in %v", response.Kind, response.Image, response.ElapsedTime)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
