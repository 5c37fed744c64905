package inspect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/device"
	"github.com/chenyuwen/myf2fs/internal/services"
	"github.com/chenyuwen/myf2fs/internal/types"
	"github.com/chenyuwen/myf2fs/pkg/app"
	fsservices "github.com/chenyuwen/myf2fs/pkg/services"
)

var curLogNames = [...]string{"hot", "warm", "cold"}

// errLimitReached stops a recursive listing once MaxResults entries are held
var errLimitReached = errors.New("result limit reached")

// Handle processes an inspection request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	base := ctx.Logger
	if base == nil {
		base = logrus.NewEntry(logrus.StandardLogger())
	}
	log := base.WithFields(logrus.Fields{
		"image": req.Target.Path,
		"kind":  req.Kind,
	})
	ctx.Progress("Opening image...", 5)

	// 2. Open and mount
	session, err := fsservices.Open(req.Target.Path, fsservices.Options{
		Config:  effectiveConfig(ctx, req),
		Metrics: ctx.Metrics,
		Logger:  log,
	})
	if err != nil {
		return nil, app.ClassifyError("failed to open filesystem", err)
	}
	defer session.Close()
	fs := session.Mounted()

	ctx.Progress("Reading metadata...", 30)

	// 3. Build the requested section
	response := &Response{
		Kind:  req.Kind,
		Image: req.Target.String(),
	}

	switch req.Kind {
	case KindSuperblock:
		response.Superblock = superblockReport(fs.Superblock())
	case KindCheckpoint:
		response.Checkpoint = checkpointReport(fs.Checkpoint())
	case KindNAT:
		response.NAT, err = natReport(fs, req.NIDs)
	case KindList:
		response.Files, response.Truncated, err = listFiles(fs, req)
	case KindStat:
		var node *services.FileNode
		node, err = fs.Stat(req.Path)
		if err == nil {
			response.Files = []FileResult{fileResult(node)}
		}
	}
	if err != nil {
		return nil, app.ClassifyError(fmt.Sprintf("%s failed", req.Kind), err)
	}

	response.TotalFound = len(response.Files)
	response.ElapsedTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	log.WithFields(logrus.Fields{
		"files":   response.TotalFound,
		"elapsed": response.ElapsedTime,
	}).Debug("inspection completed")

	return response, nil
}

// effectiveConfig returns the image configuration with an explicit
// offset from the request taking precedence over the configured one
func effectiveConfig(ctx *app.Context, req *Request) *device.Config {
	config := device.DefaultConfig()
	if ctx.Config != nil {
		copied := *ctx.Config
		config = &copied
	}
	if req.Target.HasOffset() {
		config.PartitionOffset = req.Target.Offset
		config.AutoDetectOffset = false
	}
	return config
}

func superblockReport(sb *types.Superblock) *SuperblockReport {
	return &SuperblockReport{
		Copy:             sb.Copy,
		UUID:             sb.VolumeUUID().String(),
		VolumeName:       sb.VolumeName(),
		Version:          fmt.Sprintf("%d.%d", sb.MajorVer, sb.MinorVer),
		KernelVersion:    sb.KernelVersion(),
		InitVersion:      strings.TrimRight(string(sb.InitVersion[:]), "\x00"),
		Features:         sb.Feature.Names(),
		Extensions:       sb.Extensions(),
		BlockCount:       sb.BlockCount,
		BlocksPerSegment: sb.BlocksPerSeg(),
		SegmentsPerSec:   sb.SegsPerSec,
		SectionsPerZone:  sb.SecsPerZone,
		SegmentCount:     sb.SegmentCount,
		CPPayload:        sb.CPPayload,
		RootIno:          uint32(sb.RootIno),
		NodeIno:          uint32(sb.NodeIno),
		MetaIno:          uint32(sb.MetaIno),
		Areas: []Area{
			{Name: "checkpoint", StartBlk: uint32(sb.CPBlkAddr), Segments: sb.SegmentCountCkpt},
			{Name: "sit", StartBlk: uint32(sb.SITBlkAddr), Segments: sb.SegmentCountSIT},
			{Name: "nat", StartBlk: uint32(sb.NATBlkAddr), Segments: sb.SegmentCountNAT},
			{Name: "ssa", StartBlk: uint32(sb.SSABlkAddr), Segments: sb.SegmentCountSSA},
			{Name: "main", StartBlk: uint32(sb.MainBlkAddr), Segments: sb.SegmentCountMain},
		},
	}
}

func checkpointReport(cp *types.Checkpoint) *CheckpointReport {
	report := &CheckpointReport{
		Pack:                cp.PackIndex,
		PackStart:           uint32(cp.PackStart),
		Version:             cp.Version,
		Flags:               cp.Flags.Names(),
		Checksum:            fmt.Sprintf("0x%08x", cp.StoredChecksum()),
		PackTotalBlockCount: cp.PackTotalBlockCount,
		UserBlockCount:      cp.UserBlockCount,
		ValidBlockCount:     cp.ValidBlockCount,
		RsvdSegmentCount:    cp.RsvdSegmentCount,
		OverprovSegCount:    cp.OverprovSegmentCount,
		FreeSegmentCount:    cp.FreeSegmentCount,
		ValidNodeCount:      cp.ValidNodeCount,
		ValidInodeCount:     cp.ValidInodeCount,
		NextFreeNID:         uint32(cp.NextFreeNid),
		ElapsedTime:         cp.ElapsedTime,
	}

	for i, name := range curLogNames {
		report.CurSegments = append(report.CurSegments, CurSegment{
			Log:    name + "_node",
			Segno:  cp.CurNodeSegno[i],
			Blkoff: cp.CurNodeBlkoff[i],
		})
	}
	for i, name := range curLogNames {
		report.CurSegments = append(report.CurSegments, CurSegment{
			Log:    name + "_data",
			Segno:  cp.CurDataSegno[i],
			Blkoff: cp.CurDataBlkoff[i],
		})
	}

	return report
}

func natReport(fs *services.Filesystem, nids []uint32) (*NATReport, error) {
	info, err := fs.Info()
	if err != nil {
		return nil, err
	}
	geometry := fs.NATGeometry()

	report := &NATReport{
		BaseAddr:        uint32(geometry.Base),
		Blocks:          geometry.Blocks,
		EntriesPerBlock: geometry.EntriesPerBlock,
		MaxNID:          geometry.MaxNID(),
		AlternateBlocks: info.NATAlternateBlocks,
		NATBitsValid:    info.NATBitsValid,
		FullBlocks:      info.NATFullBlocks,
		EmptyBlocks:     info.NATEmptyBlocks,
	}

	for _, nid := range nids {
		loc, err := fs.ResolveNAT(types.NodeID(nid))
		if err != nil {
			return nil, fmt.Errorf("nid %d: %w", nid, err)
		}
		report.Resolved = append(report.Resolved, NATResolution{
			NID:          uint32(loc.NID),
			NATBlock:     loc.NATBlock,
			Slot:         loc.NATSlot,
			NATBlockAddr: uint32(loc.NATBlockAddr),
			Alternate:    loc.UseAlternate,
			Ino:          uint32(loc.Entry.Ino),
			BlockAddr:    uint32(loc.Entry.BlockAddr),
			Version:      loc.Entry.Version,
		})
	}

	return report, nil
}

// listFiles lists the directory at req.Path, or describes the single
// inode when it is not a directory
func listFiles(fs *services.Filesystem, req *Request) ([]FileResult, bool, error) {
	node, err := fs.Stat(req.Path)
	if err != nil {
		return nil, false, err
	}
	if !node.IsDirectory {
		return []FileResult{fileResult(node)}, false, nil
	}

	var files []FileResult
	truncated := false
	collect := func(n *services.FileNode) error {
		if len(files) == req.MaxResults {
			truncated = true
			return errLimitReached
		}
		files = append(files, fileResult(n))
		if !req.Recursive && n.IsDirectory {
			return services.ErrSkipDir
		}
		return nil
	}

	err = fs.Walk(req.Path, collect)
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, false, err
	}
	return files, truncated, nil
}

func fileResult(n *services.FileNode) FileResult {
	fileType := n.FileType.String()
	return FileResult{
		Path:        n.Path,
		Name:        n.Name,
		Inode:       uint32(n.Inode),
		Type:        fileType,
		Mode:        n.Mode,
		Permissions: permissionString(n.Mode, fileType),
		Size:        n.Size,
		Links:       n.HardLinkCount,
		UID:         n.UID,
		GID:         n.GID,
		Modified:    n.ModifiedTime,
		NodeBlock:   uint32(n.NodeBlock),
		Inline:      n.InlineFlags&(types.InlineData|types.InlineDentry) != 0,
	}
}
