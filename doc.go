/*
Package rastcat renders geospatial, multi-band raster imagery inline in
terminal emulators that support inline image display (iTerm2 OSC 1337,
kitty graphics, sixel).

The pipeline is a thin sequence of transformations over GDAL's read
primitives: open a raster (local path or URL), select or composite bands,
resample a source window to the display width, rescale each channel to the
16-bit display range, encode as PNG, and write the terminal's escape
sequence.

Basic usage:

	src, err := rastcat.Open("scene.tif")
	if err != nil {
	    log.Fatal(err)
	}
	defer src.Close()

	cm, _ := rastcat.LookupColormap("viridis")
	buf, err := rastcat.Compose(src, rastcat.ComposeOptions{
	    Width:      800,
	    Resampling: godal.Average,
	    Colormap:   cm,
	})
	if err != nil {
	    log.Fatal(err)
	}

	png, _ := rastcat.EncodePNG(buf, rastcat.DefaultZLevel)
	tx := rastcat.NewTransmitter(os.Stdout, rastcat.Auto, rastcat.DetectFraming(), -1)
	tx.Transmit(buf, png)

Escape sequences are wrapped for tmux/screen passthrough when a multiplexer
is detected; framing is decided once at startup and passed down explicitly.
*/
package rastcat
