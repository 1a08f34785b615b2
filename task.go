package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"geotiler/queue"
	"geotiler/tile"
)

//Task 入队任务
type Task struct {
	ID     string
	Tiles  []tile.Address
	Queued int64
	Bar    *pb.ProgressBar
	quiet  bool
}

//NewTask 创建入队任务
func NewTask(tiles []tile.Address) *Task {
	id, _ := shortid.Generate()
	return &Task{ID: id, Tiles: tiles}
}

//ZoomCounts 各级别瓦片数
func (task *Task) ZoomCounts() map[uint32]int {
	counts := make(map[uint32]int)
	for _, t := range task.Tiles {
		counts[t.Zoom]++
	}
	return counts
}

func (task *Task) logPlan() {
	counts := task.ZoomCounts()
	zooms := make([]int, 0, len(counts))
	for z := range counts {
		zooms = append(zooms, int(z))
	}
	sort.Ints(zooms)
	for _, z := range zooms {
		log.WithField("task", task.ID).Debugf("zoom: %d, tiles: %d", z, counts[uint32(z)])
	}
}

//Run 执行入队
func (task *Task) Run(ctx context.Context, store queue.Store) error {
	task.logPlan()
	task.Bar = pb.New(len(task.Tiles)).Prefix(fmt.Sprintf("Task %s : ", task.ID))
	if task.quiet {
		task.Bar.NotPrint = true
	}
	task.Bar.Start()
	err := queue.Push(ctx, store, task.Tiles, func(_ tile.Address, queued bool) {
		if queued {
			task.Queued++
		}
		task.Bar.Increment()
	})
	task.Bar.FinishPrint(fmt.Sprintf("task %s finished ~ %d of %d tiles queued", task.ID, task.Queued, len(task.Tiles)))
	return err
}

// parseLatLng reads "lat,lng" into a lng/lat point.
func parseLatLng(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("latitude %q: %w", parts[0], err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("longitude %q: %w", parts[1], err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return orb.Point{}, fmt.Errorf("%q out of range", s)
	}
	return orb.Point{lng, lat}, nil
}
