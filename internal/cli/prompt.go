package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/romkeeper/romkeeper/internal/database"
)

// consolePrompter resolves ambiguous matches interactively on stdin.
type consolePrompter struct{}

func (consolePrompter) SelectRom(candidate string, roms []database.Rom) (*database.Rom, error) {
	fmt.Printf("%s matches multiple roms:\n", candidate)
	for i := range roms {
		fmt.Printf("  [%d] %s\n", i, roms[i].Name)
	}
	choice, err := readInt("Selection", 0, len(roms)-1)
	if err != nil {
		return nil, err
	}
	return &roms[choice], nil
}

func (consolePrompter) ConfirmReplace(candidate, existing string) (bool, error) {
	fmt.Printf("%s duplicates %s, replace? [y/N] ", candidate, existing)
	line, err := readLine()
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return line, nil
}

func readInt(prompt string, min, max int) (int, error) {
	for {
		fmt.Printf("%s [%d-%d]: ", prompt, min, max)
		line, err := readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= min && n <= max {
			return n, nil
		}
	}
}

// selectSystem resolves the --system flag, falling back to an
// interactive pick when several systems exist.
func selectSystem(q database.Queryer, name string) (*database.System, error) {
	if name != "" {
		system, err := database.FindSystemByName(q, name)
		if err != nil {
			return nil, err
		}
		if system == nil {
			return nil, fmt.Errorf("no system named %q", name)
		}
		return system, nil
	}

	systems, err := database.FindSystems(q)
	if err != nil {
		return nil, err
	}
	switch len(systems) {
	case 0:
		return nil, fmt.Errorf("no systems imported yet, run import-dats first")
	case 1:
		return &systems[0], nil
	}
	for i := range systems {
		fmt.Printf("  [%d] %s\n", i, systems[i].EffectiveName())
	}
	choice, err := readInt("System", 0, len(systems)-1)
	if err != nil {
		return nil, err
	}
	return &systems[choice], nil
}

// gameFilterEnv is the expression environment of --filter.
type gameFilterEnv struct {
	Name     string `expr:"name"`
	Regions  string `expr:"regions"`
	Complete bool   `expr:"complete"`
	Sorting  int    `expr:"sorting"`
}

// selectGames returns the system's games, narrowed by an optional
// expr filter such as `name contains "Disc 1"` or `complete`.
func selectGames(q database.Queryer, systemID int64, filter string) ([]database.Game, error) {
	games, err := database.FindGamesBySystemID(q, systemID)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return games, nil
	}

	program, err := expr.Compile(filter, expr.Env(gameFilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	var selected []database.Game
	for _, game := range games {
		env := gameFilterEnv{
			Name:     game.Name,
			Regions:  game.Regions,
			Complete: game.Complete,
			Sorting:  int(game.Sorting),
		}
		keep, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("filter evaluation failed: %w", err)
		}
		if keep.(bool) {
			selected = append(selected, game)
		}
	}
	return selected, nil
}
