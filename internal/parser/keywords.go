package parser

import "strings"

// skillKeyword is a baseline skill name. Exact keywords are matched
// case-sensitively because their lowercase forms are common English words.
type skillKeyword struct {
	name  string
	exact bool
}

var skillKeywords = []skillKeyword{
	{name: "Go", exact: true},
	{name: "Golang"},
	{name: "Python"},
	{name: "Java"},
	{name: "JavaScript"},
	{name: "TypeScript"},
	{name: "C++"},
	{name: "C#"},
	{name: "Ruby"},
	{name: "PHP"},
	{name: "Rust"},
	{name: "Kotlin"},
	{name: "Swift", exact: true},
	{name: "Scala"},
	{name: "Elixir"},
	{name: "Haskell"},
	{name: "SQL"},
	{name: "NoSQL"},
	{name: "HTML"},
	{name: "CSS"},
	{name: "Sass"},
	{name: "React"},
	{name: "Angular"},
	{name: "Vue.js"},
	{name: "Next.js"},
	{name: "Node.js"},
	{name: "Express", exact: true},
	{name: "Django"},
	{name: "Flask"},
	{name: "FastAPI"},
	{name: "Spring Boot"},
	{name: "Ruby on Rails"},
	{name: "Laravel"},
	{name: ".NET"},
	{name: "GraphQL"},
	{name: "REST", exact: true},
	{name: "gRPC"},
	{name: "PostgreSQL"},
	{name: "MySQL"},
	{name: "MongoDB"},
	{name: "Redis"},
	{name: "Elasticsearch"},
	{name: "Cassandra"},
	{name: "DynamoDB"},
	{name: "SQLite"},
	{name: "Kafka"},
	{name: "RabbitMQ"},
	{name: "AWS"},
	{name: "Azure"},
	{name: "GCP"},
	{name: "Google Cloud"},
	{name: "Docker"},
	{name: "Kubernetes"},
	{name: "Terraform"},
	{name: "Ansible"},
	{name: "Jenkins"},
	{name: "GitHub Actions"},
	{name: "CI/CD"},
	{name: "Linux"},
	{name: "Bash"},
	{name: "Git"},
	{name: "Jira"},
	{name: "Figma"},
	{name: "Tableau"},
	{name: "Power BI"},
	{name: "Excel", exact: true},
	{name: "Pandas"},
	{name: "NumPy"},
	{name: "TensorFlow"},
	{name: "PyTorch"},
	{name: "scikit-learn"},
	{name: "Machine Learning"},
	{name: "Deep Learning"},
	{name: "NLP"},
	{name: "Computer Vision"},
	{name: "Data Analysis"},
	{name: "Microservices"},
	{name: "Agile"},
	{name: "Scrum"},
	{name: "TDD"},
	{name: "Leadership"},
	{name: "Communication"},
	{name: "Teamwork"},
	{name: "Problem Solving"},
	{name: "Project Management"},
	{name: "Mentoring"},
}

// IsKnownSkill reports whether name is one of the baseline keywords,
// ignoring case.
func IsKnownSkill(name string) bool {
	for _, k := range skillKeywords {
		if strings.EqualFold(k.name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
