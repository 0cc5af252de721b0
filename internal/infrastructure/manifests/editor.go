package manifests

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// ErrNoContainers means the manifest holds no container image references to rewrite.
var ErrNoContainers = errors.New("the manifest does not contain any container image references")

// DeploymentEditor rewrites container image references inside Kubernetes deployment manifests.
// The manifest is parsed to locate the image scalars, but the rewrite splices only the located
// lines in the raw bytes, so every other line of the file is left byte-identical, whatever
// indentation or comment style it uses.
type DeploymentEditor struct {
}

type containerRef struct {
	name  string
	image *yaml.Node
}

// SetImage rewrites the image reference of the containers belonging to the named service in the
// manifest at path, and reports whether the file changed. Containers are targeted by a name
// matching the service. A manifest whose containers carry no matching name has every container
// image rewritten, which mirrors how single-service manifests are laid out.
func (e *DeploymentEditor) SetImage(filesystem billy.Filesystem, path string, service string, image string) (bool, error) {
	manifest, err := readFile(filesystem, path)

	if err != nil {
		return false, err
	}

	documents, err := decodeDocuments(manifest)

	if err != nil {
		return false, err
	}

	containers := lo.FlatMap(documents, func(document *yaml.Node, index int) []containerRef {
		return documentContainers(document)
	})

	if len(containers) == 0 {
		return false, ErrNoContainers
	}

	names := lo.Map(containers, func(item containerRef, index int) string {
		return item.name
	})

	if slices.Contains(names, service) {
		containers = lo.Filter(containers, func(item containerRef, index int) bool {
			return item.name == service
		})
	}

	targets := lo.Filter(containers, func(item containerRef, index int) bool {
		return item.image.Value != image
	})

	if len(targets) == 0 {
		return false, nil
	}

	updated, err := spliceImageLines(manifest, targets, image)

	if err != nil {
		return false, err
	}

	err = util.WriteFile(filesystem, path, updated, 0644)

	if err != nil {
		return false, err
	}

	return true, nil
}

func readFile(filesystem billy.Filesystem, path string) ([]byte, error) {
	file, err := filesystem.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	return io.ReadAll(file)
}

func decodeDocuments(manifest []byte) ([]*yaml.Node, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(manifest))

	documents := []*yaml.Node{}
	for {
		document := &yaml.Node{}
		err := decoder.Decode(document)

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		documents = append(documents, document)
	}

	return documents, nil
}

// spliceImageLines replaces the source token of each targeted image scalar in place, using the
// line and column recorded by the parser. Lines that do not hold a targeted image are carried
// over untouched.
func spliceImageLines(manifest []byte, targets []containerRef, image string) ([]byte, error) {
	lines := strings.Split(string(manifest), "\n")

	for _, target := range targets {
		index := target.image.Line - 1

		if index < 0 || index >= len(lines) {
			return nil, fmt.Errorf("the image reference reported at line %d is outside the manifest", target.image.Line)
		}

		line := lines[index]
		column := target.image.Column - 1

		if column < 0 || column > len(line) {
			return nil, fmt.Errorf("the image reference reported at line %d column %d is outside the manifest", target.image.Line, target.image.Column)
		}

		oldToken, newToken, err := scalarTokens(target.image, image)

		if err != nil {
			return nil, err
		}

		if !strings.HasPrefix(line[column:], oldToken) {
			return nil, fmt.Errorf("the manifest does not hold the expected image reference at line %d", target.image.Line)
		}

		lines[index] = line[:column] + newToken + line[column+len(oldToken):]
	}

	return []byte(strings.Join(lines, "\n")), nil
}

// scalarTokens returns the raw source token of the image scalar and its replacement in the same
// quoting style.
func scalarTokens(node *yaml.Node, value string) (string, string, error) {
	switch node.Style {
	case 0:
		return node.Value, value, nil
	case yaml.SingleQuotedStyle:
		return "'" + node.Value + "'", "'" + value + "'", nil
	case yaml.DoubleQuotedStyle:
		return "\"" + node.Value + "\"", "\"" + value + "\"", nil
	}

	return "", "", fmt.Errorf("the image reference at line %d uses an unsupported scalar style", node.Line)
}

// documentContainers returns the containers declared under spec.template.spec.containers,
// which is where Deployments, StatefulSets, and DaemonSets all keep their pod template.
func documentContainers(document *yaml.Node) []containerRef {
	root := document
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}

		root = root.Content[0]
	}

	containers := mappingValue(mappingValue(mappingValue(mappingValue(root, "spec"), "template"), "spec"), "containers")

	if containers == nil || containers.Kind != yaml.SequenceNode {
		return nil
	}

	return lo.FilterMap(containers.Content, func(container *yaml.Node, index int) (containerRef, bool) {
		image := mappingValue(container, "image")

		if image == nil || image.Kind != yaml.ScalarNode {
			return containerRef{}, false
		}

		name := ""
		if nameNode := mappingValue(container, "name"); nameNode != nil {
			name = nameNode.Value
		}

		return containerRef{
			name:  name,
			image: image,
		}, true
	})
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}

	return nil
}
