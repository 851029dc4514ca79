package training

import (
	"fmt"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// Accounts hosting the classic built-in XGBoost algorithm image, keyed by
// region. The algorithm image is owned per-region by the platform.
var algorithmAccounts = map[string]string{
	"us-east-1":      "811284229777",
	"us-east-2":      "825641698319",
	"us-west-2":      "433757028032",
	"eu-west-1":      "685385470294",
	"ap-northeast-1": "501404015308",
	"ap-southeast-2": "544295431143",
}

// Regions where the open-source XGBoost framework image is published under
// the shared framework registry account.
var frameworkRegions = map[string]bool{
	"us-east-1":      true,
	"us-east-2":      true,
	"us-west-1":      true,
	"us-west-2":      true,
	"eu-west-1":      true,
	"eu-central-1":   true,
	"ap-northeast-1": true,
	"ap-southeast-1": true,
	"ap-southeast-2": true,
}

const frameworkAccount = "683313688378"

// AlgorithmImage resolves the built-in XGBoost algorithm image URI for the
// region. Used in builtin mode, where the platform owns the training code.
func AlgorithmImage(region string) (string, error) {
	account, ok := algorithmAccounts[region]
	if !ok {
		return "", errors.NewValueError("training.AlgorithmImage", "no built-in algorithm image registered for region "+region)
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/xgboost:1", account, region), nil
}

// FrameworkImage resolves the open-source XGBoost framework image URI for
// the region. Used in framework mode, where a custom entry-point script
// drives training inside the framework container.
func FrameworkImage(region, version string) (string, error) {
	if !frameworkRegions[region] {
		return "", errors.NewValueError("training.FrameworkImage", "no framework image registered for region "+region)
	}
	if version == "" {
		version = "1.7-1"
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/sagemaker-xgboost:%s", frameworkAccount, region, version), nil
}
