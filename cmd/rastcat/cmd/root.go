package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	rastcat "github.com/blacktop/go-rastcat"
)

var flags struct {
	width         int
	bands         []string
	resampling    string
	colormap      string
	zlevel        int
	scale         string
	alpha         []string
	quiet         bool
	stack         bool
	revstack      bool
	scanURLs      bool
	noFilename    bool
	noPassthrough bool
	lines         int
	srcwin        string
	protocol      string
	verbose       bool
}

func init() {
	log.SetHandler(clihandler.Default)

	f := rootCmd.Flags()
	f.IntVarP(&flags.width, "width", "w", 800, "Target display width in pixels")
	f.StringSliceVarP(&flags.bands, "band", "b", nil, "1-based band index to use as a channel (repeatable)")
	f.StringVarP(&flags.resampling, "resampling", "r", "average", "Resampling algorithm (nearest|bilinear|cubic|cubicspline|lanczos|average|mode)")
	f.StringVarP(&flags.colormap, "colormap", "c", rastcat.DefaultColormap, "Colormap for single-band display")
	f.IntVarP(&flags.zlevel, "zlevel", "z", rastcat.DefaultZLevel, "PNG compression level (0-9)")
	f.StringVar(&flags.scale, "scale", "", "Explicit rescale range as min,max (shared across channels)")
	f.StringSliceVarP(&flags.alpha, "alpha", "a", nil, "Sample value treated as transparent (repeatable)")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress the per-image summary line")
	f.BoolVar(&flags.stack, "stack", false, "Combine inputs as the R,G,B channels of one image")
	f.BoolVar(&flags.revstack, "revstack", false, "Like --stack with the input order reversed")
	f.BoolVarP(&flags.scanURLs, "urls", "u", false, "Scan each input line for embedded URLs")
	f.BoolVar(&flags.noFilename, "no-filename", false, "Suppress printing the resolved name before each image")
	f.BoolVar(&flags.noPassthrough, "no-passthrough", false, "Disable raw pass-through for already-displayable formats")
	f.IntVarP(&flags.lines, "lines", "l", -1, "Terminal line-height hint (-1 = natural size)")
	f.StringVar(&flags.srcwin, "srcwin", "", "Source sub-window as xoff,yoff,xsize,ysize")
	f.StringVarP(&flags.protocol, "protocol", "p", "auto", "Image protocol (auto|iterm2|kitty|sixel)")
	f.BoolVarP(&flags.verbose, "verbose", "V", false, "Enable verbose logging")

	viper.SetEnvPrefix("rastcat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(f); err != nil {
		log.WithError(err).Fatal("failed to bind flags")
	}
}

var rootCmd = &cobra.Command{
	Use:   "rastcat [flags] <img ...>",
	Short: "Display geospatial rasters inline in your terminal",
	Long: `rastcat reads raster files (local paths or URLs), composites bands,
resamples to a display size and prints them as inline terminal images.
A lone "-" reads the input list from stdin, one entry per line.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute runs the root command. Raster-open failures and bad flag values
// exit 1; an interrupt stops before the next input and exits 0.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

// config is everything the per-input pipeline needs, computed once from
// flags and environment before any input is touched.
type config struct {
	width      int
	bands      rastcat.BandSelection
	resampling godal.ResamplingAlg
	colormap   rastcat.Colormap
	zlevel     int
	scale      *rastcat.ScaleRange
	alpha      rastcat.AlphaMask
	window     rastcat.SourceWindow
	lines      int

	framing rastcat.Framing
	tx      *rastcat.Transmitter
}

func run(cmd *cobra.Command, args []string) error {
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Debug("stdout is not a terminal; image sequences will be written verbatim")
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	resolver := rastcat.NewResolver()
	resolver.PassThrough = !viper.GetBool("no-passthrough")
	resolver.ScanURLs = viper.GetBool("urls")

	inputs, err := resolver.Expand(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs to display")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if viper.GetBool("stack") || viper.GetBool("revstack") {
		return displayStack(inputs, cfg)
	}

	for _, token := range inputs {
		if ctx.Err() != nil {
			log.Debug("interrupted, skipping remaining inputs")
			return nil
		}
		if err := display(resolver, token, cfg); err != nil {
			var fe *rastcat.FetchError
			if errors.As(err, &fe) {
				log.WithError(fe.Err).Errorf("skipping %s", fe.URL)
				continue
			}
			return err
		}
	}
	return nil
}

func buildConfig() (*config, error) {
	cfg := &config{
		width:   viper.GetInt("width"),
		zlevel:  viper.GetInt("zlevel"),
		lines:   viper.GetInt("lines"),
		framing: rastcat.DetectFraming(),
	}
	if cfg.width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", cfg.width)
	}
	if cfg.framing.Multiplexed && cfg.width > rastcat.MultiplexedMaxWidth {
		log.Debugf("capping width to %d under a multiplexer", rastcat.MultiplexedMaxWidth)
		cfg.width = rastcat.MultiplexedMaxWidth
	}

	var err error
	if cfg.colormap, err = rastcat.LookupColormap(viper.GetString("colormap")); err != nil {
		return nil, err
	}
	if cfg.resampling, err = rastcat.ParseResampling(viper.GetString("resampling")); err != nil {
		return nil, err
	}
	proto, err := rastcat.ParseProtocol(viper.GetString("protocol"))
	if err != nil {
		return nil, err
	}
	cfg.tx = rastcat.NewTransmitter(os.Stdout, proto, cfg.framing, cfg.lines)

	scale, err := parseFloats(viper.GetString("scale"))
	if err != nil {
		return nil, fmt.Errorf("invalid --scale: %w", err)
	}
	if len(scale) > 0 {
		if len(scale) != 2 {
			return nil, fmt.Errorf("--scale takes exactly min,max")
		}
		r := rastcat.ScaleRange{Min: scale[0], Max: scale[1]}
		if !r.Valid() {
			return nil, fmt.Errorf("--scale max must be greater than min (got %g,%g)", r.Min, r.Max)
		}
		cfg.scale = &r
	}
	alpha, err := parseFloats(viper.GetStringSlice("alpha")...)
	if err != nil {
		return nil, fmt.Errorf("invalid --alpha: %w", err)
	}
	if len(alpha) > 0 {
		cfg.alpha = rastcat.AlphaMask(alpha)
	}
	win, err := parseInts(viper.GetString("srcwin"))
	if err != nil {
		return nil, fmt.Errorf("invalid --srcwin: %w", err)
	}
	if len(win) > 0 {
		if len(win) != 4 {
			return nil, fmt.Errorf("--srcwin takes exactly xoff,yoff,xsize,ysize")
		}
		cfg.window = rastcat.SourceWindow{XOff: win[0], YOff: win[1], XSize: win[2], YSize: win[3]}
	}
	bands, err := parseInts(viper.GetStringSlice("band")...)
	if err != nil {
		return nil, fmt.Errorf("invalid --band: %w", err)
	}
	if len(bands) > 0 {
		if len(bands) > 4 {
			return nil, fmt.Errorf("at most 4 bands may be selected, got %d", len(bands))
		}
		cfg.bands = rastcat.BandSelection(bands)
	}
	return cfg, nil
}

// splitList splits comma or space separated values, accepting both the
// pflag CSV form and the RASTCAT_* env form.
func splitList(vals ...string) []string {
	var out []string
	for _, v := range vals {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return out
}

func parseFloats(vals ...string) ([]float64, error) {
	fields := splitList(vals...)
	out := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", field)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(vals ...string) ([]int, error) {
	fields := splitList(vals...)
	out := make([]int, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", field)
		}
		out = append(out, v)
	}
	return out, nil
}

func display(resolver *rastcat.Resolver, token string, cfg *config) error {
	in, err := resolver.Resolve(token)
	if err != nil {
		return err
	}
	defer in.Close()

	if !viper.GetBool("no-filename") {
		fmt.Println(in.Name)
	}

	if in.Raw != nil {
		log.Debugf("pass-through: %s (%d bytes)", in.Name, len(in.Raw))
		if err := cfg.tx.TransmitRaw(in.Raw); err != nil {
			return err
		}
		summarize(0, 0, 0, len(in.Raw))
		return nil
	}

	src := in.Source
	log.Debugf("%s: %dx%d, %d bands", in.Name, src.Width(), src.Height(), src.BandCount())
	if gt, ok := src.GeoTransform(); ok {
		log.Debugf("origin (%g, %g), pixel size %g x %g", gt[0], gt[3], gt[1], gt[5])
	}

	buf, err := rastcat.Compose(src, rastcat.ComposeOptions{
		Window:     cfg.window,
		Bands:      cfg.bands,
		Width:      cfg.width,
		Resampling: cfg.resampling,
		Scale:      cfg.scale,
		Colormap:   cfg.colormap,
		Alpha:      cfg.alpha,
	})
	if err != nil {
		return err
	}

	data, err := rastcat.EncodePNG(buf, cfg.zlevel)
	if err != nil {
		return err
	}
	if err := cfg.tx.Transmit(buf, data); err != nil {
		return err
	}
	summarize(src.Height(), src.Width(), src.BandCount(), len(data))
	return nil
}

func displayStack(paths []string, cfg *config) error {
	buf, err := rastcat.ComposeStack(paths, rastcat.StackOptions{
		Window:     cfg.window,
		Width:      cfg.width,
		Resampling: cfg.resampling,
		Scale:      cfg.scale,
		Alpha:      cfg.alpha,
		Reverse:    viper.GetBool("revstack"),
	})
	if err != nil {
		return err
	}
	data, err := rastcat.EncodePNG(buf, cfg.zlevel)
	if err != nil {
		return err
	}
	if err := cfg.tx.Transmit(buf, data); err != nil {
		return err
	}
	b := buf.Bounds()
	summarize(b.Dy(), b.Dx(), len(paths), len(data))
	return nil
}

// summarize prints the one-line per-image summary unless quiet. Pass-through
// inputs report only the transfer size.
func summarize(height, width, bands, size int) {
	if viper.GetBool("quiet") {
		return
	}
	if width == 0 {
		fmt.Printf("[tfr: %s]\n", humanSize(size))
		return
	}
	fmt.Printf("%dx%d pixels / %d bands.  [tfr: %s]\n", height, width, bands, humanSize(size))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
