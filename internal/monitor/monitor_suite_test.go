package monitor_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMonitorScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Monitor Scenario Suite")
}
