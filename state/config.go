package state

import (
	"io/ioutil"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/lumistat/ledsec/helpers"
	"github.com/lumistat/ledsec/log2"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

type Config struct {
	Tele tele_config.Config `hcl:"tele"`
}

func ReadConfig(path string) (*Config, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "config read path=%s", path)
	}
	return ParseConfig(bs)
}

func ParseConfig(bs []byte) (*Config, error) {
	c := &Config{}
	if err := hcl.Unmarshal(bs, c); err != nil {
		return nil, errors.Annotatef(err, "config parse content=%s", string(bs))
	}

	errs := make([]error, 0, 2)
	if c.Tele.Role != tele_config.RoleInvalid && !c.Tele.Role.Valid() {
		errs = append(errs, errors.NotValidf("config tele.role=%s", c.Tele.Role))
	}
	// fail on bad key material at startup, not at first message
	if _, err := c.Tele.Keys(); err != nil {
		errs = append(errs, err)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return nil, err
	}
	return c, nil
}

func MustReadConfig(log *log2.Log, path string) *Config {
	c, err := ReadConfig(path)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
