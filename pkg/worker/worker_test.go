package worker

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FalconSN/booruchan/pkg/catalog"
)

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWorkerSelectInsertRoundTrip(t *testing.T) {
	c := openTestCatalog(t)
	w := New(c)
	go w.Run()
	defer func() {
		done := make(chan struct{})
		w.Commands() <- CloseCmd{Done: done}
		<-done
	}()

	reply := make(chan SelectResult, 1)
	w.Commands() <- SelectCmd{Platform: "yandere", ID: 1, Reply: reply}
	res := <-reply
	require.NoError(t, res.Err)
	require.False(t, res.Found)

	entry := catalog.Entry{ID: 1, MD5: "m", Path: "/tmp/y/1.jpg"}
	w.Commands() <- InsertCmd{Platform: "yandere", Entry: entry}

	reply2 := make(chan SelectResult, 1)
	w.Commands() <- SelectCmd{Platform: "yandere", ID: 1, Reply: reply2}
	res2 := <-reply2
	require.NoError(t, res2.Err)
	require.True(t, res2.Found)
	require.True(t, res2.Entry.Equal(entry))
}

func TestWorkerImageJob(t *testing.T) {
	c := openTestCatalog(t)
	w := New(c)
	go w.Run()
	defer func() {
		done := make(chan struct{})
		w.Commands() <- CloseCmd{Done: done}
		<-done
	}()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	reply := make(chan ImageResult, 1)
	w.Commands() <- ImageCmd{
		Src:       src,
		DestParts: []string{dir, "out", "1.jpg"},
		MaxW:      800,
		MaxH:      800,
		Reply:     reply,
	}
	res := <-reply
	require.NoError(t, res.Err)
	require.True(t, res.Found)
	_, err = os.Stat(res.Path)
	require.NoError(t, err)
}

func TestWorkerClosesOnCloseCmd(t *testing.T) {
	c := openTestCatalog(t)
	w := New(c)
	go w.Run()

	done := make(chan struct{})
	w.Commands() <- CloseCmd{Done: done}
	<-done
}
