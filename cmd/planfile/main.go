// Command planfile runs the multi-day planner on a request file and prints
// the plan as JSON. It is the offline counterpart of POST /v1/optimize.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"

	"herdroute/internal/config"
	"herdroute/internal/model"
	"herdroute/internal/plan"
)

func main() {
	var (
		reqPath    = flag.String("f", "", "optimize request JSON, - for stdin")
		farmsPath  = flag.String("farms", "", "CSV farm roster replacing the request's farms")
		configPath = flag.String("config", "", "optimizer YAML, built-in defaults when empty")
		seed       = flag.Int64("seed", 0, "override the request seed")
		budgetMS   = flag.Int("budget-ms", 0, "override the per-day time budget")
		pretty     = flag.Bool("pretty", false, "indent the output")
	)
	flag.Parse()
	if *reqPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	req, err := readRequest(*reqPath)
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	if *farmsPath != "" {
		farms, err := loadFarmsCSV(*farmsPath)
		if err != nil {
			log.Fatalf("farms: %v", err)
		}
		req.Farms = farms
	}
	if *seed != 0 {
		req.Seed = *seed
	}
	if *budgetMS > 0 {
		req.TimeBudgetMS = *budgetMS
	}
	if err := req.Validate(); err != nil {
		log.Fatalf("request: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	out, err := plan.New(cfg, nil).Run(context.Background(), "opt-"+uuid.NewString(), req, nil)
	if err != nil {
		log.Fatalf("plan: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func readRequest(path string) (model.OptimizeRequest, error) {
	var req model.OptimizeRequest
	var src io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, err
		}
		defer func() { _ = f.Close() }()
		src = f
	}
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	return req, nil
}

// loadFarmsCSV reads a farm roster. The header must name id, lat, lng and
// available_units; name, max_capacity and avg_unit_weight are optional.
func loadFarmsCSV(path string) ([]model.FarmInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"id", "lat", "lng", "available_units"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var farms []model.FarmInput
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		farm := model.FarmInput{ID: field(row, "id"), Name: field(row, "name")}
		if farm.Location.Lat, err = strconv.ParseFloat(field(row, "lat"), 64); err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		if farm.Location.Lng, err = strconv.ParseFloat(field(row, "lng"), 64); err != nil {
			return nil, fmt.Errorf("line %d: lng: %w", line, err)
		}
		if farm.AvailableUnits, err = strconv.Atoi(field(row, "available_units")); err != nil {
			return nil, fmt.Errorf("line %d: available_units: %w", line, err)
		}
		if v := field(row, "max_capacity"); v != "" {
			if farm.MaxCapacity, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("line %d: max_capacity: %w", line, err)
			}
		}
		if v := field(row, "avg_unit_weight"); v != "" {
			if farm.AvgUnitWeight, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("line %d: avg_unit_weight: %w", line, err)
			}
		}
		farms = append(farms, farm)
	}
	return farms, nil
}
