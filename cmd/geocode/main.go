package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/mapkit/internal/directions"
	"github.com/woozymasta/mapkit/internal/geo"
	"github.com/woozymasta/mapkit/internal/geocoder"
	"github.com/woozymasta/mapkit/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	APIKey        string        `short:"k" long:"api-key"        env:"MAPKIT_API_KEY"  description:"API key" required:"true"`
	GeocoderURL   string        `long:"geocoder-url"             env:"GEOCODER_URL"    description:"Geocoding service base URL"`
	DirectionsURL string        `long:"directions-url"           env:"DIRECTIONS_URL"  description:"Directions service base URL"`
	Timeout       time.Duration `long:"timeout"                  env:"REQUEST_TIMEOUT" description:"Request timeout" default:"10s"`
	Output        string        `short:"o" long:"out"            description:"Output file path. Writes to stdout if empty"`
	Format        string        `short:"f" long:"format"         description:"Output format" choice:"json" choice:"yaml" default:"json"`

	Geocode GeocodeCommand `command:"geocode" description:"Resolve a street address"`
	Reverse ReverseCommand `command:"reverse" description:"Resolve a coordinate to addresses"`
	Route   RouteCommand   `command:"route"   description:"Compute a route between two places"`
}

var opts Options

type GeocodeCommand struct {
	Building bool `short:"b" long:"building" description:"Include building footprints"`
	Args     struct {
		Address string `positional-arg-name:"address" required:"true"`
	} `positional-args:"yes"`
}

type ReverseCommand struct {
	Building bool `short:"b" long:"building" description:"Include building footprints"`
	Args     struct {
		Lat float64 `positional-arg-name:"lat" required:"true"`
		Lon float64 `positional-arg-name:"lon" required:"true"`
	} `positional-args:"yes"`
}

type RouteCommand struct {
	Mode  string `short:"m" long:"mode" description:"Travel mode" choice:"driving" choice:"walking" choice:"cycling" default:"driving"`
	Shape bool   `short:"s" long:"shape" description:"Print the encoded shape of every leg instead of points"`
	Args  struct {
		From string `positional-arg-name:"from" required:"true"`
		To   string `positional-arg-name:"to" required:"true"`
	} `positional-args:"yes"`
}

func main() {
	_ = godotenv.Load(".env")

	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		opts.Logger.Setup()
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func (c *GeocodeCommand) Execute([]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client := geocoder.New(opts.GeocoderURL, opts.APIKey, opts.Timeout)
	results, err := client.Geocode(ctx, c.Args.Address, c.Building)
	if err != nil {
		return err
	}
	return write(results)
}

func (c *ReverseCommand) Execute([]string) error {
	p := geo.GeoPoint{Lat: c.Args.Lat, Lon: c.Args.Lon}
	if err := geo.Validate(p); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client := geocoder.New(opts.GeocoderURL, opts.APIKey, opts.Timeout)
	results, err := client.ReverseGeocode(ctx, p, c.Building)
	if err != nil {
		return err
	}
	return write(results)
}

type legShape struct {
	Summary directions.Summary `json:"summary" yaml:"summary"`
	Shape   string             `json:"shape" yaml:"shape"`
}

func (c *RouteCommand) Execute([]string) error {
	mode, err := directions.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client := directions.New(opts.DirectionsURL, opts.APIKey, opts.Timeout)
	route, err := client.Route(ctx, directions.Request{
		OriginAddress:      c.Args.From,
		DestinationAddress: c.Args.To,
		Mode:               mode,
	})
	if err != nil {
		return err
	}

	if !c.Shape {
		return write(route)
	}
	legs := make([]legShape, 0, len(route.Legs))
	for _, leg := range route.Legs {
		legs = append(legs, legShape{Summary: leg.Summary, Shape: directions.EncodeShape(leg.Points)})
	}
	return write(legs)
}

// write marshals v in the selected format to the output file or stdout.
func write(v any) error {
	var (
		data []byte
		err  error
	)
	if opts.Format == "yaml" {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	if opts.Output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (format: %s)\n", opts.Output, opts.Format)
	return nil
}
