package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/deploy"
)

// DiamondInfo is the persisted form of deploy.Diamond.
type DiamondInfo struct {
	Router         string `json:"router"`
	CutFacet       string `json:"cutFacet"`
	LoupeFacet     string `json:"loupeFacet"`
	OwnershipFacet string `json:"ownershipFacet"`
	Facet          string `json:"facet"`
	Init           string `json:"init"`
}

// DeploymentInfo is what 'deploy' leaves behind for every later command.
type DeploymentInfo struct {
	Owner       string      `json:"owner"`
	RewardToken string      `json:"rewardToken"`
	Want        string      `json:"want"`
	Farm        DiamondInfo `json:"farm"`
	Strategy    DiamondInfo `json:"strategy"`
}

func newDiamondInfo(dm deploy.Diamond) DiamondInfo {
	return DiamondInfo{
		Router:         dm.Router.String(),
		CutFacet:       dm.CutFacet.String(),
		LoupeFacet:     dm.LoupeFacet.String(),
		OwnershipFacet: dm.OwnershipFacet.String(),
		Facet:          dm.Facet.String(),
		Init:           dm.Init.String(),
	}
}

func NewDeploymentInfo(owner types.Address, dep *deploy.Deployment, rewardToken, want types.Address) *DeploymentInfo {
	return &DeploymentInfo{
		Owner:       owner.String(),
		RewardToken: rewardToken.String(),
		Want:        want.String(),
		Farm:        newDiamondInfo(dep.Farm),
		Strategy:    newDiamondInfo(dep.Strategy),
	}
}

func (d *DiamondInfo) decode() (deploy.Diamond, error) {
	var (
		dm  deploy.Diamond
		err error
	)
	for _, field := range []struct {
		name string
		val  string
		dest *types.Address
	}{
		{"router", d.Router, &dm.Router},
		{"cutFacet", d.CutFacet, &dm.CutFacet},
		{"loupeFacet", d.LoupeFacet, &dm.LoupeFacet},
		{"ownershipFacet", d.OwnershipFacet, &dm.OwnershipFacet},
		{"facet", d.Facet, &dm.Facet},
		{"init", d.Init, &dm.Init},
	} {
		if *field.dest, err = types.DecodeAddress(field.val); err != nil {
			return deploy.Diamond{}, fmt.Errorf("invalid %s address %q: %w", field.name, field.val, err)
		}
	}
	return dm, nil
}

// Deployment decodes the saved router addresses.
func (d *DeploymentInfo) Deployment() (*deploy.Deployment, error) {
	farmDiamond, err := d.Farm.decode()
	if err != nil {
		return nil, fmt.Errorf("farm: %w", err)
	}
	stratDiamond, err := d.Strategy.decode()
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}
	return &deploy.Deployment{Farm: farmDiamond, Strategy: stratDiamond}, nil
}

func (d *DeploymentInfo) FarmRouter() types.Address {
	addr, _ := types.DecodeAddress(d.Farm.Router)
	return addr
}

func (d *DeploymentInfo) StrategyRouter() types.Address {
	addr, _ := types.DecodeAddress(d.Strategy.Router)
	return addr
}

func (d *DeploymentInfo) RewardTokenAddress() types.Address {
	addr, _ := types.DecodeAddress(d.RewardToken)
	return addr
}

func (d *DeploymentInfo) WantAddress() types.Address {
	addr, _ := types.DecodeAddress(d.Want)
	return addr
}

// SaveDeploymentInfo saves info into cfgName by first saving into a temp file and then replacing the config
// file only if successfully written.
func SaveDeploymentInfo(cfgName string, info *DeploymentInfo) error {
	err := os.MkdirAll(filepath.Dir(cfgName), 0775) // user+group RWX, others RX
	if err != nil {
		return fmt.Errorf("error making directory:%s, error:%w", filepath.Dir(cfgName), err)
	}
	temp, err := os.CreateTemp(filepath.Dir(cfgName), filepath.Base(cfgName)+".*")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(temp)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(info)
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving deployment: %w", err)
	}

	err = temp.Close()
	if err != nil {
		return err
	}

	err = os.Rename(temp.Name(), cfgName)
	if err != nil {
		return err
	}
	slog.Info("deployment saved", "file", cfgName)
	return nil
}

// LoadDeploymentInfo reads and validates a deployment file.
func LoadDeploymentInfo(cfgName string) (*DeploymentInfo, error) {
	file, err := os.Open(cfgName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var info DeploymentInfo
	if err = json.NewDecoder(file).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", cfgName, err)
	}
	if _, err = info.Deployment(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfgName, err)
	}
	for _, addr := range []string{info.Owner, info.RewardToken, info.Want} {
		if _, err = types.DecodeAddress(addr); err != nil {
			return nil, fmt.Errorf("%s: invalid address %q: %w", cfgName, addr, err)
		}
	}
	return &info, nil
}
