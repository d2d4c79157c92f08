// Package builtin registers the demo tool set: clock, age calculation,
// simulated weather, product catalog search, and the safe math calculator.
package builtin

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/nextrun/augment/internal/mathexpr"
	"github.com/nextrun/augment/internal/tool"
)

// RegisterAll registers every builtin tool into the registry.
func RegisterAll(registry *tool.Registry) error {
	specs := []tool.Spec{
		{
			Name:        "get_current_time",
			Description: "Get the current time in a specified timezone",
			Parameters:  tool.ReflectSchema(&timeArgs{}),
			Handler:     currentTime,
		},
		{
			Name:        "calculate_age",
			Description: "Calculate age based on birth date",
			Parameters:  tool.ReflectSchema(&ageArgs{}),
			Handler:     calculateAge,
		},
		{
			Name:        "get_weather",
			Description: "Get current weather for a location",
			Parameters:  tool.ReflectSchema(&weatherArgs{}),
			Handler:     weather,
		},
		{
			Name:        "search_products",
			Description: "Search for products in a catalog",
			Parameters:  tool.ReflectSchema(&productArgs{}),
			Handler:     searchProducts,
		},
		{
			Name:        "do_math_calculation",
			Description: "Perform a mathematical calculation",
			Parameters:  tool.ReflectSchema(&calcArgs{}),
			Handler:     calculate,
		},
	}

	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// decodeArgs maps the invocation parameters onto a typed argument struct,
// weakly typed so schema-valid JSON numbers land in int fields.
func decodeArgs(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(params); err != nil {
		return errors.WithMessage(err, "invalid arguments")
	}
	return nil
}

type timeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as America/New_York"`
}

func currentTime(_ context.Context, params map[string]any) (any, error) {
	var args timeArgs
	if err := decodeArgs(params, &args); err != nil {
		return nil, err
	}

	now := time.Now()
	zone := "local"
	if args.Timezone != "" {
		loc, err := time.LoadLocation(args.Timezone)
		if err != nil {
			return nil, errors.Errorf("unknown timezone: %s", args.Timezone)
		}
		now = now.In(loc)
		zone = args.Timezone
	}

	return map[string]any{
		"current_time": now.Format("2006-01-02 15:04:05"),
		"timezone":     zone,
	}, nil
}

type ageArgs struct {
	BirthDate string `json:"birth_date" jsonschema:"description=Birth date in YYYY-MM-DD format"`
}

func calculateAge(_ context.Context, params map[string]any) (any, error) {
	var args ageArgs
	if err := decodeArgs(params, &args); err != nil {
		return nil, err
	}

	birth, err := time.Parse("2006-01-02", args.BirthDate)
	if err != nil {
		return nil, errors.Errorf("birth_date must be YYYY-MM-DD: %v", err)
	}

	today := time.Now()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() ||
		(today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return nil, errors.Errorf("birth_date %s is in the future", args.BirthDate)
	}

	return map[string]any{
		"birth_date":       birth.Format("2006-01-02"),
		"age":              age,
		"calculation_date": today.Format("2006-01-02"),
	}, nil
}

type weatherArgs struct {
	Location string `json:"location" jsonschema:"description=City name such as San Francisco"`
	Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit,default=celsius"`
}

var weatherConditions = []string{
	"Sunny", "Partly Cloudy", "Cloudy", "Rainy", "Thunderstorm", "Snowy", "Foggy",
}

// weather returns simulated data, deterministic per location so the demo is
// reproducible.
func weather(_ context.Context, params map[string]any) (any, error) {
	var args weatherArgs
	if err := decodeArgs(params, &args); err != nil {
		return nil, err
	}
	if args.Location == "" {
		return nil, errors.New("location is required")
	}

	unit := args.Unit
	if unit == "" {
		unit = "celsius"
	}
	base, ok := map[string]int{"celsius": 22, "fahrenheit": 72}[unit]
	if !ok {
		return nil, errors.Errorf("unit must be celsius or fahrenheit, got %q", unit)
	}

	sum := md5.Sum([]byte(args.Location))
	seed := binary.BigEndian.Uint64(sum[:8])

	condition := weatherConditions[seed%uint64(len(weatherConditions))]
	variation := int(seed%21) - 10
	humidity := 30 + int((seed>>8)%61)

	return map[string]any{
		"location":    args.Location,
		"temperature": base + variation,
		"unit":        unit,
		"condition":   condition,
		"humidity":    humidity,
		"note":        "This is simulated weather data for demonstration purposes",
	}, nil
}

type productArgs struct {
	Query      string `json:"query" jsonschema:"description=Search query"`
	Category   string `json:"category,omitempty" jsonschema:"description=Product category"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results to return,default=5"`
}

type product struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Rating   float64 `json:"rating"`
}

var productCatalog = []product{
	{1, "Laptop", "Electronics", 999.99, 4.5},
	{2, "Smartphone", "Electronics", 699.99, 4.7},
	{3, "Headphones", "Electronics", 199.99, 4.3},
	{4, "Coffee Maker", "Kitchen", 89.99, 4.1},
	{5, "Blender", "Kitchen", 49.99, 4.0},
	{6, "Running Shoes", "Sports", 129.99, 4.6},
	{7, "Yoga Mat", "Sports", 29.99, 4.4},
	{8, "Programming Book", "Books", 39.99, 4.8},
	{9, "Novel", "Books", 19.99, 4.2},
	{10, "Desk", "Furniture", 249.99, 4.0},
}

func searchProducts(_ context.Context, params map[string]any) (any, error) {
	var args productArgs
	if err := decodeArgs(params, &args); err != nil {
		return nil, err
	}
	if args.Query == "" {
		return nil, errors.New("query is required")
	}
	if args.MaxResults <= 0 {
		args.MaxResults = 5
	}

	var results []product
	for _, p := range productCatalog {
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(args.Query)) {
			continue
		}
		if args.Category != "" && !strings.EqualFold(p.Category, args.Category) {
			continue
		}
		results = append(results, p)
		if len(results) == args.MaxResults {
			break
		}
	}
	if results == nil {
		results = []product{}
	}

	return map[string]any{
		"query":    args.Query,
		"category": args.Category,
		"count":    len(results),
		"results":  results,
	}, nil
}

type calcArgs struct {
	Expression string `json:"expression" jsonschema:"description=Mathematical expression to evaluate such as 2 + 2"`
}

// calculate evaluates an arithmetic expression. Rejected or failed
// expressions come back as a structured error result rather than a failed
// call, so a tool-calling model sees what went wrong.
func calculate(_ context.Context, params map[string]any) (any, error) {
	var args calcArgs
	if err := decodeArgs(params, &args); err != nil {
		return nil, err
	}
	if args.Expression == "" {
		return nil, errors.New("expression is required")
	}

	result, err := mathexpr.Evaluate(args.Expression)
	if err != nil {
		return map[string]any{
			"expression": args.Expression,
			"error":      err.Error(),
		}, nil
	}

	return map[string]any{
		"expression": args.Expression,
		"result":     result,
	}, nil
}
