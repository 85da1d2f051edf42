package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/repository"
)

// catalogSeed is the layout of seed/catalog.yaml. Cross references use
// names, so the file can be written before any ID exists.
type catalogSeed struct {
	Levels   []levelSeed  `yaml:"levels"`
	Families []familySeed `yaml:"families"`
}

type levelSeed struct {
	Name         string            `yaml:"name"`
	Rank         int               `yaml:"rank"`
	Description  string            `yaml:"description"`
	Color        string            `yaml:"color"`
	Requirements []requirementSeed `yaml:"requirements"`
}

type requirementSeed struct {
	Kind        model.RequirementKind `yaml:"kind"`
	Threshold   int                   `yaml:"threshold"`
	Family      string                `yaml:"family"`
	Type        string                `yaml:"type"` // needs Family
	Description string                `yaml:"description"`
}

type familySeed struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Color       string     `yaml:"color"`
	SortOrder   int        `yaml:"sort_order"`
	Types       []typeSeed `yaml:"types"`
}

type typeSeed struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	DurationMins    int    `yaml:"duration_mins"`
	DefaultCapacity int    `yaml:"default_capacity"`
	Training        bool   `yaml:"training"`
	RequiredLevel   string `yaml:"required_level"`
	Inactive        bool   `yaml:"inactive"`
}

// parseCatalogSeed decodes and checks a seed document. Unknown keys are
// rejected so typos do not silently drop data.
func parseCatalogSeed(r io.Reader) (*catalogSeed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed catalogSeed
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *catalogSeed) validate() error {
	var errs []error

	levels := make(map[string]bool)
	for _, l := range s.Levels {
		if l.Name == "" {
			errs = append(errs, errors.New("level without a name"))
			continue
		}
		if levels[l.Name] {
			errs = append(errs, fmt.Errorf("level %q listed twice", l.Name))
		}
		levels[l.Name] = true
	}

	types := make(map[string]bool)
	for _, f := range s.Families {
		if f.Name == "" {
			errs = append(errs, errors.New("family without a name"))
			continue
		}
		for _, t := range f.Types {
			key := f.Name + "/" + t.Name
			switch {
			case t.Name == "":
				errs = append(errs, fmt.Errorf("family %q: type without a name", f.Name))
			case types[key]:
				errs = append(errs, fmt.Errorf("type %q listed twice", key))
			case t.DurationMins <= 0:
				errs = append(errs, fmt.Errorf("type %q: duration_mins must be positive", key))
			case t.DefaultCapacity < 1:
				errs = append(errs, fmt.Errorf("type %q: default_capacity must be at least 1", key))
			case t.RequiredLevel != "" && !levels[t.RequiredLevel]:
				errs = append(errs, fmt.Errorf("type %q: unknown required_level %q", key, t.RequiredLevel))
			}
			types[key] = true
		}
	}

	families := make(map[string]bool)
	for _, f := range s.Families {
		families[f.Name] = true
	}
	for _, l := range s.Levels {
		for _, req := range l.Requirements {
			switch {
			case !req.Kind.IsValid():
				errs = append(errs, fmt.Errorf("level %q: unknown requirement kind %q", l.Name, req.Kind))
			case req.Threshold < 1:
				errs = append(errs, fmt.Errorf("level %q: threshold must be at least 1", l.Name))
			case req.Type != "" && req.Family == "":
				errs = append(errs, fmt.Errorf("level %q: type %q needs its family", l.Name, req.Type))
			case req.Family != "" && !families[req.Family]:
				errs = append(errs, fmt.Errorf("level %q: unknown family %q", l.Name, req.Family))
			case req.Type != "" && !types[req.Family+"/"+req.Type]:
				errs = append(errs, fmt.Errorf("level %q: unknown type %q", l.Name, req.Family+"/"+req.Type))
			}
		}
	}

	return errors.Join(errs...)
}

// seedStore is the storage the seeder writes through
type seedStore interface {
	GetLevelByName(ctx context.Context, name string) (*model.RoleLevel, error)
	CreateLevel(ctx context.Context, level *model.RoleLevel) error
	ListRequirements(ctx context.Context, levelID string) ([]model.RoleRequirement, error)
	CreateRequirement(ctx context.Context, req *model.RoleRequirement) error

	GetFamilyByName(ctx context.Context, name string) (*model.WorkshopFamily, error)
	CreateFamily(ctx context.Context, family *model.WorkshopFamily) error
	GetTypeByName(ctx context.Context, familyID, name string) (*model.WorkshopType, error)
	CreateType(ctx context.Context, wt *model.WorkshopType) error
}

// repoSeedStore joins the two repositories the seeder needs
type repoSeedStore struct {
	*repository.CatalogRepository
	*repository.RoleLevelRepository
}

// seedResult counts what a run created. Existing records are left alone.
type seedResult struct {
	Levels       int
	Families     int
	Types        int
	Requirements int
}

// applyCatalogSeed creates every level, family, type and requirement that
// does not exist yet, matching by name. Levels go first because types and
// requirements refer to them.
func applyCatalogSeed(ctx context.Context, store seedStore, seed *catalogSeed) (seedResult, error) {
	var res seedResult

	levelIDs := make(map[string]string)
	for _, l := range seed.Levels {
		level, err := store.GetLevelByName(ctx, l.Name)
		if err != nil {
			return res, fmt.Errorf("level %q: %w", l.Name, err)
		}
		if level == nil {
			level = &model.RoleLevel{
				Name:        l.Name,
				Rank:        l.Rank,
				Description: optional(l.Description),
				Color:       optional(l.Color),
			}
			if err := store.CreateLevel(ctx, level); err != nil {
				return res, fmt.Errorf("create level %q: %w", l.Name, err)
			}
			res.Levels++
		}
		levelIDs[l.Name] = level.ID
	}

	familyIDs := make(map[string]string)
	typeIDs := make(map[string]string)
	for _, f := range seed.Families {
		family, err := store.GetFamilyByName(ctx, f.Name)
		if err != nil {
			return res, fmt.Errorf("family %q: %w", f.Name, err)
		}
		if family == nil {
			family = &model.WorkshopFamily{
				Name:        f.Name,
				Description: optional(f.Description),
				Color:       optional(f.Color),
				SortOrder:   f.SortOrder,
			}
			if err := store.CreateFamily(ctx, family); err != nil {
				return res, fmt.Errorf("create family %q: %w", f.Name, err)
			}
			res.Families++
		}
		familyIDs[f.Name] = family.ID

		for _, t := range f.Types {
			wt, err := store.GetTypeByName(ctx, family.ID, t.Name)
			if err != nil {
				return res, fmt.Errorf("type %q: %w", t.Name, err)
			}
			if wt == nil {
				wt = &model.WorkshopType{
					FamilyID:        family.ID,
					Name:            t.Name,
					Description:     optional(t.Description),
					DurationMins:    t.DurationMins,
					DefaultCapacity: t.DefaultCapacity,
					IsTraining:      t.Training,
					Active:          !t.Inactive,
				}
				if t.RequiredLevel != "" {
					id := levelIDs[t.RequiredLevel]
					wt.RequiredLevelID = &id
				}
				if err := store.CreateType(ctx, wt); err != nil {
					return res, fmt.Errorf("create type %q: %w", t.Name, err)
				}
				res.Types++
			}
			typeIDs[f.Name+"/"+t.Name] = wt.ID
		}
	}

	for _, l := range seed.Levels {
		levelID := levelIDs[l.Name]
		existing, err := store.ListRequirements(ctx, levelID)
		if err != nil {
			return res, fmt.Errorf("requirements of %q: %w", l.Name, err)
		}

		for _, rs := range l.Requirements {
			req := &model.RoleRequirement{
				LevelID:     levelID,
				Kind:        rs.Kind,
				Threshold:   rs.Threshold,
				Description: optional(rs.Description),
			}
			if rs.Type != "" {
				id := typeIDs[rs.Family+"/"+rs.Type]
				req.TypeID = &id
			} else if rs.Family != "" {
				id := familyIDs[rs.Family]
				req.FamilyID = &id
			}

			if hasRequirement(existing, req) {
				continue
			}
			if err := store.CreateRequirement(ctx, req); err != nil {
				return res, fmt.Errorf("create requirement on %q: %w", l.Name, err)
			}
			existing = append(existing, *req)
			res.Requirements++
		}
	}

	return res, nil
}

// hasRequirement reports whether a requirement with the same kind and
// scope is already attached. Thresholds are not compared, so editing one
// in the file does not create a duplicate.
func hasRequirement(existing []model.RoleRequirement, req *model.RoleRequirement) bool {
	for _, e := range existing {
		if e.Kind == req.Kind && sameRef(e.TypeID, req.TypeID) && sameRef(e.FamilyID, req.FamilyID) {
			return true
		}
	}
	return false
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var seedOpts struct {
	file   string
	dryRun bool
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the workshop catalog and certification ladder from YAML",
	Long: `Creates the role levels, workshop families, workshop types and level
requirements described in a YAML file. Records are matched by name and
existing ones are left untouched, so the command can be run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(seedOpts.file)
		if err != nil {
			return err
		}
		defer f.Close()

		seed, err := parseCatalogSeed(f)
		if err != nil {
			return fmt.Errorf("%s: %w", seedOpts.file, err)
		}

		if seedOpts.dryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d levels, %d families\n",
				seedOpts.file, len(seed.Levels), len(seed.Families))
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		_, db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		store := repoSeedStore{
			CatalogRepository:   repository.NewCatalogRepository(db),
			RoleLevelRepository: repository.NewRoleLevelRepository(db),
		}
		res, err := applyCatalogSeed(ctx, store, seed)
		if err != nil {
			return err
		}

		slog.Info("catalog seeded",
			slog.String("file", seedOpts.file),
			slog.Int("levels", res.Levels),
			slog.Int("families", res.Families),
			slog.Int("types", res.Types),
			slog.Int("requirements", res.Requirements),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedOpts.file, "file", "f", "seed/catalog.yaml", "Seed file")
	seedCmd.Flags().BoolVar(&seedOpts.dryRun, "dry-run", false, "Validate the file without writing")
}
