package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	testCases := []struct {
		value  string
		expect bool
	}{
		{"1", true},
		{"true", true},
		{"Yes", true},
		{" on ", true},
		{"", false},
		{"0", false},
		{"false", false},
		{"no", false},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, truthy(testCase.value), testCase.value)
	}
}

func TestOptionsAcadConfig(t *testing.T) {
	options := &Options{
		TargetMajor:      24,
		AllowNewInstance: "false",
		UseDispatch:      "1",
		PreferCurVer:     "yes",
		LaunchExe:        `C:\Program Files\Autodesk\acad.exe`,
		LaunchArgs:       "/nologo /product ACAD",
		LaunchWaitSec:    12,
	}
	config := options.acadConfig()
	assert.Equal(t, 24, config.TargetMajor)
	assert.False(t, config.AllowNewInstance)
	assert.True(t, config.UseDispatch)
	assert.True(t, config.PreferCurVer)
	assert.EqualValues(t, []string{"/nologo", "/product", "ACAD"}, config.LaunchArgs)
	assert.Equal(t, 12*time.Second, config.LaunchWait)
}

func TestOptionsAcadConfigDefaults(t *testing.T) {
	config := (&Options{}).acadConfig()
	assert.True(t, config.AllowNewInstance)
	assert.False(t, config.UseDispatch)
	assert.Equal(t, 0, config.TargetMajor)
}
