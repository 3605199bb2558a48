package subsystem

import (
	"github.com/blackwell-systems/projectlens/internal/pattern"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/scoring"
)

// sourceCategories classify lines of JavaScript and TypeScript sources.
func sourceCategories() []pattern.Category {
	return []pattern.Category{
		{Name: "functions", Keywords: []string{"function", "=>"}},
		{Name: "async", Keywords: []string{"async", "await"}},
		{Name: "classes", Keywords: []string{"class "}},
		{Name: "exports", Keywords: []string{"export"}},
		{Name: "mcp", Keywords: []string{"mcp"}},
		{Name: "apple", Keywords: []string{"apple", "m4", "neural", "intelligence"}},
		{Name: "quantum", Keywords: []string{"quantum"}},
	}
}

// bridgeCategories classify lines of cross-language bridge files.
func bridgeCategories() []pattern.Category {
	return []pattern.Category{
		{Name: "bridge", Keywords: []string{"bridge", "integrate", "connect", "sync"}},
		{Name: "async", Keywords: []string{"async", "await", "promise"}},
		{Name: "errors", Keywords: []string{"try", "catch", "error", "throw"}},
		{Name: "types", Keywords: []string{"interface", "type", "class", "struct"}},
		{Name: "integration", Keywords: []string{"api", "service", "client", "server"}},
	}
}

// sourceFileFormula scores a single JavaScript source file.
func sourceFileFormula() scoring.Formula {
	return scoring.Formula{
		Base: 0.1,
		Terms: []scoring.Term{
			{Name: "lines", Source: "lines", Divisor: 500, Cap: 0.3},
			{Name: "functions", Source: "hits.functions", Divisor: 20, Cap: 0.2},
			{Name: "async", Source: "hits.async", Divisor: 10, Cap: 0.15},
			{Name: "classes", Source: "hits.classes", Divisor: 10, Cap: 1},
			{Name: "mcp", Source: "hits.mcp", Divisor: 20, Cap: 1},
			{Name: "apple", Source: "hits.apple", Divisor: 20, Cap: 1},
			{Name: "quantum", Source: "hits.quantum", Divisor: 20, Cap: 1},
		},
	}
}

// bridgeFileFormula scores a single cross-language bridge file.
func bridgeFileFormula() scoring.Formula {
	return scoring.Formula{
		Base: 0.1,
		Terms: []scoring.Term{
			{Name: "lines", Source: "lines", Divisor: 200, Cap: 0.2},
			{Name: "bridge", Source: "hits.bridge", Divisor: 10, Cap: 0.2},
			{Name: "async", Source: "hits.async", Divisor: 5, Cap: 0.15},
			{Name: "errors", Source: "hits.errors", Divisor: 5, Cap: 0.15},
			{Name: "types", Source: "hits.types", Divisor: 5, Cap: 0.1},
			{Name: "integration", Source: "hits.integration", Divisor: 10, Cap: 0.2},
		},
	}
}

// Default returns the built-in profile. Each call returns a fresh copy that
// the caller may modify.
func Default() []Definition {
	return []Definition{
		foundation(),
		intelligenceFramework(),
		directorFramework(),
		portal(),
		mcpServer(),
		modelBridge(),
		scripts(),
		bridgeIntegrations(),
		documentation(),
	}
}

func foundation() Definition {
	return Definition{
		Name: "Foundation",
		Path: "foundation-models",
		Artifacts: []string{
			"index.js",
			"package.json",
			"grid-claude-hybrid-processor.js",
			"cross-project-validation-router.js",
			"sources-of-truth-authenticator.js",
			"apple-intelligence-qa-framework.js",
		},
		Facts: []Fact{
			{Name: "learning_pipeline", Path: "learning-pipeline"},
			{Name: "package_manifest", Path: "package.json", JSONPath: "dependencies"},
		},
		Categories:  sourceCategories(),
		FileFormula: &FileFormula{Extensions: []string{".js"}, Formula: sourceFileFormula()},
		Formula: scoring.Formula{
			Base: 0.2,
			Terms: []scoring.Term{
				{Name: "components", Source: "artifacts", Divisor: 10, Cap: 0.6},
				{Name: "complexity", Source: "file_score.avg", Divisor: 2.5, Cap: 0.4},
				{Name: "learning_pipeline", Source: "fact.learning_pipeline", Divisor: 1, Cap: 0.3},
			},
		},
		Rules: []Rule{{
			Kind:      RuleScoreBelow,
			Threshold: 0.8,
			Priority:  report.PriorityHigh,
			Action:    "Complete MCP integration activation and hybrid processor optimization",
			Impact:    "Unlocks the full intelligence pipeline and accelerated analysis",
		}},
	}
}

func intelligenceFramework() Definition {
	return Definition{
		Name:       "IntelligenceFramework",
		Path:       "AppleIntelligenceFramework",
		Required:   true,
		Walk:       true,
		Extensions: []string{".swift"},
		FileGroups: []FileGroup{
			{Name: "swift", Extensions: []string{".swift"}},
			{Name: "typescript", Extensions: []string{".ts", ".tsx"}},
		},
		Facts: []Fact{
			{Name: "neural_engine", Contains: []string{"neuralengine", "coreml", "mlmodel"}},
			{Name: "multi_language", Groups: []string{"swift", "typescript"}},
		},
		Categories: []pattern.Category{
			{Name: "optimization", Keywords: []string{"m4", "neural", "metalperformanceshaders", "accelerate"}},
		},
		Formula: scoring.Formula{
			Base: 0.2,
			Terms: []scoring.Term{
				{Name: "files", Source: "files", Divisor: 50, Cap: 0.3},
				{Name: "optimization", Source: "files_matching.optimization", Divisor: 5, Cap: 0.25},
				{Name: "neural_engine", Source: "fact.neural_engine", Divisor: 1, Cap: 0.25},
				{Name: "multi_language", Source: "fact.multi_language", Divisor: 1, Cap: 0.1},
			},
		},
		Rules: []Rule{
			{
				Kind:     RuleMissing,
				Priority: report.PriorityCritical,
				Trigger:  "Intelligence framework missing",
				Action:   "Deploy the intelligence framework with neural engine optimization",
				Impact:   "Enables hardware-accelerated model processing",
			},
			{
				Kind:     RuleFactAbsent,
				Fact:     "neural_engine",
				Priority: report.PriorityHigh,
				Subject:  "IntelligenceFramework optimization",
				Action:   "Implement neural engine integration (Core ML model loading)",
				Impact:   "Faster on-device content processing",
			},
		},
	}
}

func directorFramework() Definition {
	return Definition{
		Name: "DirectorFramework",
		Path: "StrategicDirectorFramework",
		Artifacts: []string{
			"pattern-and-alignment-validator.js",
			"strategic-director-bridge.ts",
			"strategic-director-auto-integration.ts",
			"archaeology-configuration.js",
		},
		ArtifactKinds: []ArtifactKind{
			{Name: "validators", NameContains: []string{"validator"}},
			{Name: "bridges", NameContains: []string{"bridge"}},
		},
		Facts: []Fact{
			{Name: "tsconfig", Path: "tsconfig.json"},
			{Name: "tsconfig_paths", Path: "tsconfig.json", JSONPath: "compilerOptions.paths"},
		},
		Formula: scoring.Formula{
			Base: 0.2,
			Terms: []scoring.Term{
				{Name: "components", Source: "artifacts", Divisor: 1 / 0.15, Cap: 0.6},
				{Name: "validators", Source: "artifacts.validators", Divisor: 5, Cap: 0.8},
				{Name: "bridges", Source: "artifacts.bridges", Divisor: 5, Cap: 0.8},
				{Name: "tsconfig", Source: "fact.tsconfig", Divisor: 1, Cap: 0.1},
				{Name: "tsconfig_paths", Source: "fact.tsconfig_paths", Divisor: 1, Cap: 0.15},
			},
		},
		Rules: []Rule{{
			Kind:      RuleScoreBelow,
			Threshold: 0.8,
			Priority:  report.PriorityHigh,
			Action:    "Complete validation tools and bridge integration activation",
			Impact:    "Automated quality assurance for director decisions",
		}},
	}
}

func portal() Definition {
	return Definition{
		Name: "Portal",
		Path: "CreatrixPortal",
		Walk: true,
		Subdirs: []string{
			"vercel", "framer-cloudflare-sync", "services", "scripts", "lib", "config", "integrations",
		},
		FileGroups: []FileGroup{
			{Name: "code", Extensions: []string{".ts", ".tsx", ".js", ".jsx"}},
		},
		Facts: []Fact{
			{Name: "quantum", Glob: "*quantum*"},
			{Name: "package_manifest", Path: "package.json"},
		},
		Formula: scoring.Formula{
			Base: 0.2,
			Terms: []scoring.Term{
				{Name: "subprojects", Source: "dirs", Divisor: 20, Cap: 0.2},
				{Name: "files", Source: "files", Divisor: 400, Cap: 0.2},
				{Name: "code", Source: "files.code", Divisor: 100, Cap: 0.15},
				{Name: "package_manifest", Source: "fact.package_manifest", Divisor: 1, Cap: 0.1},
				{Name: "quantum", Source: "fact.quantum", Divisor: 1, Cap: 0.2},
			},
		},
	}
}

func mcpServer() Definition {
	return Definition{
		Name:       "MCPServer",
		Path:       "FigmaMCPServer",
		Extensions: []string{".js", ".ts"},
		FileGroups: []FileGroup{
			{Name: "server", Extensions: []string{".js", ".ts"}},
		},
		Facts: []Fact{
			{Name: "mcp", Contains: []string{"mcp"}},
		},
		Categories: []pattern.Category{
			{Name: "design", Keywords: []string{"figma", "design", "component", "frame", "node"}},
		},
		Formula: scoring.Formula{
			Base: 0.1,
			Terms: []scoring.Term{
				{Name: "server_files", Source: "files.server", Divisor: 10, Cap: 0.3},
				{Name: "mcp", Source: "fact.mcp", Divisor: 1, Cap: 0.3},
				{Name: "design_patterns", Source: "keywords.design", Divisor: 5, Cap: 0.3},
			},
		},
	}
}

func modelBridge() Definition {
	return Definition{
		Name:       "ModelBridge",
		Path:       "XcodeModelBridge",
		Extensions: []string{".swift", ".ts"},
		FileGroups: []FileGroup{
			{Name: "swift", Extensions: []string{".swift"}},
			{Name: "typescript", Extensions: []string{".ts"}},
		},
		Facts: []Fact{
			{Name: "multi_language", Groups: []string{"swift", "typescript"}},
			{Name: "xcode", Contains: []string{"xcode", ".xcodeproj"}},
		},
		Categories: []pattern.Category{
			{Name: "bridge", Keywords: []string{"bridge", "xcode", "model", "sync", "convert"}},
		},
		Formula: scoring.Formula{
			Base: 0.2,
			Terms: []scoring.Term{
				{Name: "multi_language", Source: "fact.multi_language", Divisor: 1, Cap: 0.2},
				{Name: "bridge_patterns", Source: "keywords.bridge", Divisor: 5, Cap: 0.3},
				{Name: "xcode", Source: "fact.xcode", Divisor: 1, Cap: 0.3},
			},
		},
	}
}

func scripts() Definition {
	return Definition{
		Name: "Scripts",
		Path: "scripts",
		FileGroups: []FileGroup{
			{Name: "services", Dir: "services"},
			{Name: "validation", Dir: "validation", Extensions: []string{".js", ".ts"}},
			{Name: "brand", Dir: "services/brand-aware-content"},
		},
		Facts: []Fact{
			{Name: "brand_content", Path: "services/brand-aware-content"},
			{Name: "quantum_env_bridge", Path: "services/quantum-env-bridge.ts"},
		},
		Formula: scoring.Formula{
			Base: 0.2,
			Terms: []scoring.Term{
				{Name: "services", Source: "files.services", Divisor: 50, Cap: 0.3},
				{Name: "validation", Source: "files.validation", Divisor: 5, Cap: 0.2},
				{Name: "brand_content", Source: "fact.brand_content", Divisor: 1, Cap: 0.04},
				{Name: "brand_files", Source: "files.brand", Divisor: 100, Cap: 0.06},
				{Name: "quantum_env_bridge", Source: "fact.quantum_env_bridge", Divisor: 1, Cap: 0.1},
			},
		},
	}
}

func bridgeIntegrations() Definition {
	return Definition{
		Name: "BridgeIntegrations",
		Path: "",
		Artifacts: []string{
			"SwiftTypescriptServiceBridge.swift",
			"CreativeIntelligenceBridge.js",
		},
		Categories:  bridgeCategories(),
		FileFormula: &FileFormula{Formula: bridgeFileFormula()},
		Formula: scoring.Formula{
			Base: 0,
			Terms: []scoring.Term{
				{Name: "integration_health", Source: "file_score.avg", Divisor: 1, Cap: 1},
			},
		},
		Rules: []Rule{{
			Kind:      RuleScoreBelow,
			Threshold: 0.8,
			Priority:  report.PriorityMedium,
			Action:    "Optimize bridge integrations for cross-platform reliability",
			Impact:    "More reliable Swift, TypeScript and Python interop",
		}},
	}
}

func documentation() Definition {
	return Definition{
		Name: "Documentation",
		Path: "",
		Artifacts: []string{
			"setup-oksana-foundation.sh",
			"foundation-models/learning-pipeline/setup-apple-intelligence.sh",
		},
		FileGroups: []FileGroup{
			{Name: "docs", Dir: "docs", Extensions: []string{".md"}},
			{Name: "learning", Dir: "foundation-models/learning-pipeline"},
		},
		Ignore: []string{"XCodeProjects/"},
		Formula: scoring.Formula{
			Base: 0.1,
			Terms: []scoring.Term{
				{Name: "docs", Source: "files.docs", Divisor: 10, Cap: 0.3},
				{Name: "learning", Source: "files.learning", Divisor: 20, Cap: 0.3},
				{Name: "setup_scripts", Source: "artifacts", Divisor: 2, Cap: 0.3},
			},
		},
	}
}
